// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package execgraph

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentlang-ai/agentlang/pkg/types"
)

// Suspension is the persisted state of a paused workflow: where to resume,
// what was bound, and the partial result already produced.
type Suspension struct {
	ID        string
	Workflow  string
	Module    string
	UserID    string
	NextIndex int

	// Alias is the suspended statement's result binding; the resume value
	// is bound under it before execution continues.
	Alias string

	// Frames record progress inside nested blocks when the suspend point
	// was not a top-level statement, innermost first.
	Frames []Frame

	Bindings map[string]any
	Partial  any

	CreatedAt time.Time
}

// Store persists suspensions in a SQLite database.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStore opens (or creates) the suspension database at path.
func NewStore(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, types.WrapError(types.KindConfig, err, "open suspension store %s", path)
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, logger: logger}
	if err := s.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewStoreWithDB wraps an existing database handle, for sharing the main
// application database.
func NewStoreWithDB(db *sql.DB, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{db: db, logger: logger}
	if err := s.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS al_suspensions (
		id TEXT PRIMARY KEY,
		workflow TEXT NOT NULL,
		module TEXT NOT NULL,
		user_id TEXT NOT NULL DEFAULT '',
		next_index INTEGER NOT NULL,
		alias TEXT NOT NULL DEFAULT '',
		frames TEXT NOT NULL DEFAULT '[]',
		bindings TEXT NOT NULL DEFAULT '{}',
		partial TEXT,
		created_at TEXT NOT NULL
	)`)
	if err != nil {
		return types.WrapError(types.KindResolverUnavailable, err, "create suspension table")
	}
	return nil
}

// Save persists a suspension and assigns its id when unset.
func (s *Store) Save(ctx context.Context, susp *Suspension) error {
	if susp.ID == "" {
		susp.ID = uuid.NewString()
	}
	if susp.CreatedAt.IsZero() {
		susp.CreatedAt = time.Now().UTC()
	}
	bindings, err := json.Marshal(susp.Bindings)
	if err != nil {
		return types.WrapError(types.KindInternal, err, "encode suspension bindings")
	}
	partial, err := json.Marshal(susp.Partial)
	if err != nil {
		return types.WrapError(types.KindInternal, err, "encode suspension partial result")
	}
	frames, err := json.Marshal(susp.Frames)
	if err != nil {
		return types.WrapError(types.KindInternal, err, "encode suspension frames")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO al_suspensions (id, workflow, module, user_id, next_index, alias, frames, bindings, partial, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		susp.ID, susp.Workflow, susp.Module, susp.UserID, susp.NextIndex,
		susp.Alias, string(frames), string(bindings), string(partial), susp.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return types.WrapError(types.KindResolverUnavailable, err, "save suspension %s", susp.ID)
	}
	s.logger.Info("workflow suspended",
		zap.String("suspension", susp.ID),
		zap.String("workflow", susp.Workflow),
		zap.Int("nextIndex", susp.NextIndex))
	return nil
}

// Load fetches a suspension by id.
func (s *Store) Load(ctx context.Context, id string) (*Suspension, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, workflow, module, user_id, next_index, alias, frames, bindings, partial, created_at
		 FROM al_suspensions WHERE id = ?`, id)
	var susp Suspension
	var frames, bindings, partial, createdAt string
	err := row.Scan(&susp.ID, &susp.Workflow, &susp.Module, &susp.UserID,
		&susp.NextIndex, &susp.Alias, &frames, &bindings, &partial, &createdAt)
	if err == sql.ErrNoRows {
		return nil, types.NewError(types.KindNotFound, "suspension %s does not exist", id)
	}
	if err != nil {
		return nil, types.WrapError(types.KindResolverUnavailable, err, "load suspension %s", id)
	}
	if err := json.Unmarshal([]byte(frames), &susp.Frames); err != nil {
		return nil, types.WrapError(types.KindInternal, err, "decode suspension frames")
	}
	if err := json.Unmarshal([]byte(bindings), &susp.Bindings); err != nil {
		return nil, types.WrapError(types.KindInternal, err, "decode suspension bindings")
	}
	if err := json.Unmarshal([]byte(partial), &susp.Partial); err != nil {
		return nil, types.WrapError(types.KindInternal, err, "decode suspension partial result")
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		susp.CreatedAt = t
	}
	return &susp, nil
}

// Delete removes a suspension after a successful resume.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM al_suspensions WHERE id = ?`, id); err != nil {
		return types.WrapError(types.KindResolverUnavailable, err, "delete suspension %s", id)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }
