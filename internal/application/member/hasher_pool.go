package member

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"

	domain "github.com/mohammadpnp/member-provisioning/internal/domain/member"
	"golang.org/x/sync/errgroup"
)

// PreparedCredential is the credential material a row will be written with.
type PreparedCredential struct {
	WorkerType   domain.WorkerType
	PasswordHash string
	PIN          string
	// Plain is kept so updates can compare against the stored hash.
	Plain    string
	Repaired bool
	Err      error
}

type CredentialGenerator interface {
	Generate(workerType domain.WorkerType) (string, error)
}

type randomCredentialGenerator struct{}

const (
	generatedPINLength      = 6
	generatedPasswordLength = 12
	passwordAlphabet        = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

func NewRandomCredentialGenerator() CredentialGenerator {
	return randomCredentialGenerator{}
}

func (randomCredentialGenerator) Generate(workerType domain.WorkerType) (string, error) {
	alphabet, length := passwordAlphabet, generatedPasswordLength
	if workerType == domain.WorkerOperational {
		alphabet, length = "0123456789", generatedPINLength
	}
	out := make([]byte, length)
	limit := big.NewInt(int64(len(alphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}

// HasherPool prepares every credential of a chunk before the writer starts on it.
type HasherPool struct {
	hasher     domain.CredentialHasher
	generator  CredentialGenerator
	maxWorkers int
}

func NewHasherPool(hasher domain.CredentialHasher, generator CredentialGenerator, maxWorkers int) *HasherPool {
	if generator == nil {
		generator = NewRandomCredentialGenerator()
	}
	return &HasherPool{hasher: hasher, generator: generator, maxWorkers: maxWorkers}
}

// Prepare returns prepared credentials keyed by row index for every valid row. Parallelism
// is bounded by the chunk size, and by maxWorkers when set. Per-row hashing failures are
// reported through PreparedCredential.Err; only cancellation fails the whole call.
func (p *HasherPool) Prepare(ctx context.Context, rows []domain.CandidateRow) (map[int]PreparedCredential, error) {
	limit := len(rows)
	if p.maxWorkers > 0 && p.maxWorkers < limit {
		limit = p.maxWorkers
	}
	if limit < 1 {
		limit = 1
	}

	var (
		mu  sync.Mutex
		out = make(map[int]PreparedCredential, len(rows))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, row := range rows {
		if !row.Valid() {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			prepared := p.prepareRow(gctx, row)
			mu.Lock()
			out[row.RowIndex] = prepared
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *HasherPool) prepareRow(ctx context.Context, row domain.CandidateRow) PreparedCredential {
	workerType, _ := domain.ParseWorkerType(row.UserType)
	prepared := PreparedCredential{WorkerType: workerType, Plain: row.Password}

	if row.RepairCredential {
		plain, err := p.generator.Generate(workerType)
		if err != nil {
			prepared.Err = fmt.Errorf("%w: generate credential: %v", domain.ErrCredentialHashing, err)
			return prepared
		}
		prepared.Plain = plain
		prepared.Repaired = true
	}

	if workerType == domain.WorkerOperational {
		prepared.PIN = prepared.Plain
		return prepared
	}

	hash, err := p.hasher.Hash(ctx, prepared.Plain)
	if err != nil {
		prepared.Err = fmt.Errorf("%w: %v", domain.ErrCredentialHashing, err)
		return prepared
	}
	prepared.PasswordHash = hash
	return prepared
}
