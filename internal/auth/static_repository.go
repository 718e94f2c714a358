package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"sigs.k8s.io/yaml"
)

// credentialEntry is the wire shape of one element of the static credential list.
type credentialEntry struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	PasswordHash  string `json:"passwordHash"`
	Company       string `json:"company"`
	Dashboard     string `json:"dashboard"`
	DashboardPath string `json:"dashboardPath"`
	Label         string `json:"label"`
	ProjectID     string `json:"projectId"`
	Active        *bool  `json:"active"`
}

func (e credentialEntry) credential() (*Credential, error) {
	c := &Credential{
		Username:      e.Username,
		PasswordHash:  e.PasswordHash,
		Company:       e.Company,
		DashboardPath: e.DashboardPath,
		Label:         e.Label,
		ProjectID:     e.ProjectID,
		Active:        e.Active == nil || *e.Active,
	}
	if c.PasswordHash == "" {
		c.PasswordHash = e.Password
	}
	if c.DashboardPath == "" {
		c.DashboardPath = e.Dashboard
	}
	if c.PasswordHash == "" {
		return nil, fmt.Errorf("%w: password is required", ErrMalformedCredential)
	}
	if err := c.Normalize(); err != nil {
		return nil, err
	}
	return c, nil
}

// ParseCredentials decodes a JSON or YAML list of credential objects. Entries
// that fail validation are skipped with a warning. A blob that is not a list
// returns an error and no credentials.
func ParseCredentials(raw []byte, logger *slog.Logger) ([]Credential, error) {
	if logger == nil {
		logger = slog.Default()
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}

	// JSON is decoded directly; tab-indented JSON is not valid YAML.
	var elements []json.RawMessage
	var err error
	if trimmed[0] == '[' || trimmed[0] == '{' {
		err = json.Unmarshal(trimmed, &elements)
	} else {
		err = yaml.Unmarshal(trimmed, &elements)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding credential list: %w", err)
	}

	seen := make(map[string]bool, len(elements))
	creds := make([]Credential, 0, len(elements))
	for i, el := range elements {
		var entry credentialEntry
		if err := json.Unmarshal(el, &entry); err != nil {
			logger.Warn("skipping credential entry", "index", i, "error", err)
			continue
		}
		c, err := entry.credential()
		if err != nil {
			logger.Warn("skipping credential entry", "index", i, "error", err)
			continue
		}
		if seen[c.Username] {
			logger.Warn("skipping duplicate credential entry", "index", i, "username", c.Username)
			continue
		}
		seen[c.Username] = true
		creds = append(creds, *c)
	}
	return creds, nil
}

type staticTable struct {
	byUsername map[string]Credential
	byCompany  map[string]Credential
}

// StaticRepository implements CredentialStore over a credential list parsed
// once from configuration. The table is built on first use and is read-only
// afterwards.
type StaticRepository struct {
	table func() *staticTable
}

// NewStaticRepository creates a StaticRepository for the given raw list. A
// list that cannot be decoded yields an empty table and a logged error.
func NewStaticRepository(raw []byte, logger *slog.Logger) *StaticRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &StaticRepository{
		table: sync.OnceValue(func() *staticTable {
			creds, err := ParseCredentials(raw, logger)
			if err != nil {
				logger.Error("discarding static credential list", "error", err)
				creds = nil
			}
			return buildTable(creds)
		}),
	}
}

func buildTable(creds []Credential) *staticTable {
	t := &staticTable{
		byUsername: make(map[string]Credential, len(creds)),
		byCompany:  make(map[string]Credential, len(creds)),
	}
	for _, c := range creds {
		if !c.Active {
			continue
		}
		t.byUsername[c.Username] = c
		if _, ok := t.byCompany[c.Company]; !ok {
			t.byCompany[c.Company] = c
		}
	}
	return t
}

// FindByUsername returns the active credential for username.
func (r *StaticRepository) FindByUsername(_ context.Context, username string) (*Credential, error) {
	c, ok := r.table().byUsername[username]
	if !ok {
		return nil, ErrCredentialNotFound
	}
	return &c, nil
}

// FindByCompany returns the first active credential in list order for company.
func (r *StaticRepository) FindByCompany(_ context.Context, company string) (*Credential, error) {
	c, ok := r.table().byCompany[company]
	if !ok {
		return nil, ErrCredentialNotFound
	}
	return &c, nil
}

// ActiveCount returns the number of active credentials in the table.
func (r *StaticRepository) ActiveCount() int {
	return len(r.table().byUsername)
}
