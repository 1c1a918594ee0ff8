// Package sqlite provides the SQLite-backed policy store for single-node
// deployments. Conditions are stored as JSON text.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/storyglot/authz/internal/domain/access"
	"github.com/storyglot/authz/internal/domain/policy"
)

const schema = `
CREATE TABLE IF NOT EXISTS resource_policies (
	id          TEXT PRIMARY KEY,
	resource    TEXT NOT NULL,
	action      TEXT NOT NULL DEFAULT '',
	effect      TEXT NOT NULL,
	conditions  TEXT,
	priority    INTEGER NOT NULL DEFAULT 0,
	tenant_id   TEXT,
	active      INTEGER NOT NULL DEFAULT 1,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_policies_fetch
	ON resource_policies (resource, active, tenant_id, priority DESC);
`

// PolicyStore implements policy.AdminStore over a SQLite database.
type PolicyStore struct {
	db *sql.DB
}

// Open opens (creating if necessary) the policy database at path.
func Open(path string) (*PolicyStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open policy db: %w", err)
	}
	// SQLite allows one writer; serialize access through a single conn.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create policy schema: %w", err)
	}
	return &PolicyStore{db: db}, nil
}

// Close closes the database.
func (s *PolicyStore) Close() error {
	return s.db.Close()
}

// FetchActive returns active policies for the resource scoped globally or
// to tenantID, ordered by descending priority and capped at limit.
func (s *PolicyStore) FetchActive(ctx context.Context, resource, tenantID string, limit int) ([]policy.ResourcePolicy, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, resource, action, effect, conditions, priority, tenant_id, active, created_at, updated_at
		FROM resource_policies
		WHERE resource = ? AND active = 1 AND (tenant_id IS NULL OR tenant_id = ?)
		ORDER BY priority DESC
		LIMIT ?`,
		resource, tenantID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch policies: %w", err)
	}
	defer rows.Close()
	return scanPolicies(rows)
}

// Save creates or replaces a policy by ID.
func (s *PolicyStore) Save(ctx context.Context, p *policy.ResourcePolicy) error {
	var conditions any
	if p.Conditions != nil {
		data, err := json.Marshal(p.Conditions)
		if err != nil {
			return fmt.Errorf("encode conditions: %w", err)
		}
		conditions = string(data)
	}

	now := time.Now().UTC()
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resource_policies (id, resource, action, effect, conditions, priority, tenant_id, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			resource = excluded.resource,
			action = excluded.action,
			effect = excluded.effect,
			conditions = excluded.conditions,
			priority = excluded.priority,
			tenant_id = excluded.tenant_id,
			active = excluded.active,
			updated_at = excluded.updated_at`,
		p.ID, p.Resource, string(p.Action), string(p.Effect), conditions,
		p.Priority, p.TenantID, boolToInt(p.Active),
		createdAt.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save policy %s: %w", p.ID, err)
	}
	return nil
}

// Delete removes a policy by ID.
func (s *PolicyStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM resource_policies WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete policy %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("delete policy %s: not found", id)
	}
	return nil
}

// List returns every policy ordered by resource, then descending priority.
func (s *PolicyStore) List(ctx context.Context) ([]policy.ResourcePolicy, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, resource, action, effect, conditions, priority, tenant_id, active, created_at, updated_at
		FROM resource_policies
		ORDER BY resource, priority DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	defer rows.Close()
	return scanPolicies(rows)
}

func scanPolicies(rows *sql.Rows) ([]policy.ResourcePolicy, error) {
	var out []policy.ResourcePolicy
	for rows.Next() {
		var (
			p          policy.ResourcePolicy
			action     string
			effect     string
			conditions sql.NullString
			tenantID   sql.NullString
			active     int
			createdAt  string
			updatedAt  string
		)
		if err := rows.Scan(&p.ID, &p.Resource, &action, &effect, &conditions,
			&p.Priority, &tenantID, &active, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		p.Action = access.Action(action)
		p.Effect = policy.Effect(effect)
		p.Active = active != 0
		p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		p.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		if tenantID.Valid {
			tenant := tenantID.String
			p.TenantID = &tenant
		}
		if conditions.Valid && conditions.String != "" {
			var cond access.Condition
			if err := json.Unmarshal([]byte(conditions.String), &cond); err != nil {
				return nil, fmt.Errorf("decode conditions for policy %s: %w", p.ID, err)
			}
			p.Conditions = cond
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Compile-time interface verification.
var _ policy.AdminStore = (*PolicyStore)(nil)
