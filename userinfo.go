package oauth2login

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Mapping property keys.
const (
	MappingPrefix = "openmrs.mapping."

	PropUsername               = MappingPrefix + "user.username"
	PropUsernameServiceAccount = MappingPrefix + "user.username.serviceAccount"
	PropEmail                  = MappingPrefix + "user.email"
	PropGivenName              = MappingPrefix + "person.givenName"
	PropMiddleName             = MappingPrefix + "person.middleName"
	PropFamilyName             = MappingPrefix + "person.familyName"
	PropGender                 = MappingPrefix + "person.gender"
	PropSystemID               = MappingPrefix + "user.systemId"
	PropRoles                  = MappingPrefix + "user.roles"
	PropProvider               = MappingPrefix + "user.provider"
)

var (
	ErrNoUsername      = fmt.Errorf("no usable username")
	ErrInvalidUserInfo = fmt.Errorf("invalid user info document")
)

// UserInfo is a user info document read through a mapping table.
type UserInfo struct {
	doc            []byte
	mapper         PropertyMapper
	serviceAccount bool
}

// UserInfoOption customizes a UserInfo.
type UserInfoOption func(*userInfoOptions)

type userInfoOptions struct {
	reader JSONPathReader
	logger *zap.SugaredLogger
}

// WithJSONPathReader replaces the default gjson reader.
func WithJSONPathReader(r JSONPathReader) UserInfoOption {
	return func(o *userInfoOptions) { o.reader = r }
}

// WithUserInfoLogger sets the logger used for mapping diagnostics.
func WithUserInfoLogger(l *zap.SugaredLogger) UserInfoOption {
	return func(o *userInfoOptions) { o.logger = l }
}

// NewUserInfo wraps a user info JSON document.
func NewUserInfo(doc []byte, table MappingTable, opts ...UserInfoOption) (*UserInfo, error) {
	if !gjson.ValidBytes(doc) {
		return nil, ErrInvalidUserInfo
	}

	var o userInfoOptions
	for _, opt := range opts {
		opt(&o)
	}

	return &UserInfo{
		doc:    append([]byte(nil), doc...),
		mapper: NewPropertyMapper(table, o.reader, o.logger),
	}, nil
}

// NewUserInfoFromClaims wraps verified token claims as a user info document.
func NewUserInfoFromClaims(claims MapClaims, table MappingTable, opts ...UserInfoOption) (*UserInfo, error) {
	doc, err := json.Marshal(claims)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidUserInfo, err)
	}
	return NewUserInfo(doc, table, opts...)
}

// ForServiceAccount returns a view that reads the username through the
// service account mapping when one is configured.
func (u *UserInfo) ForServiceAccount() *UserInfo {
	rv := *u
	rv.serviceAccount = true
	return &rv
}

// String returns the username, or an empty string when unusable.
func (u *UserInfo) String() string {
	name, _ := u.Username()
	return name
}

// Document returns a copy of the underlying JSON.
func (u *UserInfo) Document() []byte {
	return append([]byte(nil), u.doc...)
}

// Bind decodes the whole document into v.
func (u *UserInfo) Bind(v interface{}) error {
	return json.Unmarshal(u.doc, v)
}

// Username returns the mapped username. A missing or empty username is an error.
func (u *UserInfo) Username() (string, error) {
	key := PropUsername
	if u.serviceAccount && u.mapper.Mapped(PropUsernameServiceAccount) {
		key = PropUsernameServiceAccount
	}

	name, err := u.mapper.String(u.doc, key, "", true)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoUsername, err)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrNoUsername
	}
	return name, nil
}

func (u *UserInfo) optional(key, def string) (string, error) {
	return u.mapper.String(u.doc, key, def, false)
}

// Optional identity fields. Unmapped or missing values read as empty.
func (u *UserInfo) Email() (string, error)      { return u.optional(PropEmail, "") }
func (u *UserInfo) GivenName() (string, error)  { return u.optional(PropGivenName, "") }
func (u *UserInfo) MiddleName() (string, error) { return u.optional(PropMiddleName, "") }
func (u *UserInfo) FamilyName() (string, error) { return u.optional(PropFamilyName, "") }
func (u *UserInfo) SystemID() (string, error)   { return u.optional(PropSystemID, "") }

// Gender returns the mapped gender, GenderUnknown when absent.
func (u *UserInfo) Gender() (string, error) {
	g, err := u.optional(PropGender, GenderUnknown)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(g) == "" {
		return GenderUnknown, nil
	}
	return g, nil
}

// RoleNames returns the mapped role names, never nil.
func (u *UserInfo) RoleNames() ([]string, error) {
	return u.mapper.StringList(u.doc, PropRoles)
}

// IsProviderAccount tells if the identity should own an active provider
// account. Defaults to true when the flag is not mapped or not present.
func (u *UserInfo) IsProviderAccount() (bool, error) {
	v, err := u.optional(PropProvider, "true")
	if err != nil {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(v), "true"), nil
}

// Snapshot collects all mapped identity fields.
func (u *UserInfo) Snapshot() (IdentitySnapshot, error) {
	var (
		s   IdentitySnapshot
		err error
	)

	if s.Username, err = u.Username(); err != nil {
		return s, err
	}

	fields := []struct {
		dst *string
		get func() (string, error)
	}{
		{&s.SystemID, u.SystemID},
		{&s.Email, u.Email},
		{&s.GivenName, u.GivenName},
		{&s.MiddleName, u.MiddleName},
		{&s.FamilyName, u.FamilyName},
		{&s.Gender, u.Gender},
	}
	for _, f := range fields {
		if *f.dst, err = f.get(); err != nil {
			return IdentitySnapshot{}, err
		}
	}

	if s.RoleNames, err = u.RoleNames(); err != nil {
		return IdentitySnapshot{}, err
	}
	if s.ProviderAccount, err = u.IsProviderAccount(); err != nil {
		return IdentitySnapshot{}, err
	}

	return s, nil
}
