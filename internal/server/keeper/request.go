package keeper

import "fmt"

// CredentialType selects how the submitted secret is turned into a
// symmetric key: passphrase derivation or direct raw-key conversion.
type CredentialType int

const (
	CredentialPassphrase CredentialType = iota + 1
	CredentialRawKey
)

// Request is the structural capability every authenticatable request type
// must provide. Any DTO carrying an account name, a credential, and a
// validation method satisfies it; there is no base-struct hierarchy.
//
// Credential bytes are read, used for key derivation, and never retained
// by the pipeline; defensive copying is the caller's responsibility.
type Request interface {
	AccountName() string
	Credential() []byte
	CredentialType() CredentialType

	// Validate returns a field-name to message map. An empty map means the
	// request is structurally valid.
	Validate() map[string]string
}

// maxAccountNameLen mirrors the members.account_name column width.
const maxAccountNameLen = 75

// CredentialRequest is the plain request value used by callers that do not
// bring their own DTO type.
type CredentialRequest struct {
	Account string
	Secret  []byte
	Type    CredentialType
}

func (r *CredentialRequest) AccountName() string            { return r.Account }
func (r *CredentialRequest) Credential() []byte             { return r.Secret }
func (r *CredentialRequest) CredentialType() CredentialType { return r.Type }

func (r *CredentialRequest) Validate() map[string]string {
	fields := map[string]string{}
	if len(r.Account) == 0 {
		fields["account"] = "account name is required"
	} else if len(r.Account) > maxAccountNameLen {
		fields["account"] = fmt.Sprintf("account name exceeds %d characters", maxAccountNameLen)
	}
	if len(r.Secret) == 0 {
		fields["credential"] = "credential is required"
	}
	if r.Type != CredentialPassphrase && r.Type != CredentialRawKey {
		fields["credentialType"] = "unknown credential type"
	}
	return fields
}
