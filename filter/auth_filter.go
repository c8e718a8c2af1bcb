package filter

import "srpcgo/message"

// AuthFilter vetoes any server call whose module-data is missing the
// configured credential key, or whose value the configured Validate
// func rejects. There is no teacher equivalent — mini-rpc carries no
// auth middleware — so this is grounded directly on the module-data
// veto hook spec.md's filter model describes, in the same shape as
// RateLimitFilter.
type AuthFilter struct {
	NopFilter
	Key      string
	Validate func(token string) bool
}

// NewAuthFilter builds an AuthFilter requiring module-data[key] to pass
// validate.
func NewAuthFilter(key string, validate func(token string) bool) *AuthFilter {
	return &AuthFilter{Key: key, Validate: validate}
}

func (f *AuthFilter) ServerBegin(id CallID, data *message.ModuleData) bool {
	if data == nil {
		return false
	}
	token, ok := data.Get(f.Key)
	if !ok {
		return false
	}
	return f.Validate(token)
}
