package member

type CapacityProfile string

const (
	CapacityLow    CapacityProfile = "low"
	CapacityMedium CapacityProfile = "medium"
	CapacityHigh   CapacityProfile = "high"
)

func ParseCapacityProfile(raw string) (CapacityProfile, bool) {
	switch CapacityProfile(raw) {
	case CapacityLow, CapacityMedium, CapacityHigh:
		return CapacityProfile(raw), true
	}
	return "", false
}

// UpsertOptions configures one execution. It is a plain value; the zero value is not
// useful, start from DefaultUpsertOptions.
type UpsertOptions struct {
	UpdatableFields           []Field `json:"updatable_fields,omitempty"`
	CreateNew                 bool    `json:"create_new"`
	UpdateExisting            bool    `json:"update_existing"`
	ContinueOnValidationError bool    `json:"continue_on_validation_error"`
	AutoFixCredentials        bool    `json:"auto_fix_credentials"`
	SkipOnError               bool    `json:"skip_on_error"`
	ChunkSize                 int     `json:"chunk_size,omitempty"`
	ForceBatching             bool    `json:"force_batching"`
}

func DefaultUpsertOptions() UpsertOptions {
	return UpsertOptions{
		CreateNew:                 true,
		UpdateExisting:            true,
		ContinueOnValidationError: true,
		SkipOnError:               true,
	}
}

// Updatable reports whether the field may be overwritten on update. Credential fields
// are always diffed regardless of the allowlist.
func (o UpsertOptions) Updatable(f Field) bool {
	if f.IsCredential() {
		return true
	}
	fields := o.UpdatableFields
	if len(fields) == 0 {
		fields = DefaultUpdatableFields
	}
	for _, allowed := range fields {
		if allowed == f {
			return true
		}
	}
	return false
}
