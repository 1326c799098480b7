package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// BunStore persists run snapshots and the cluster function table to
// Postgres, for deployments where the exploration host is disposable and
// the UTG must survive a restart (spec.md §12).
type BunStore struct {
	db *bun.DB
}

// NewBunStore opens a connection pool against dsn. The caller is
// responsible for calling InitSchema before first use.
func NewBunStore(dsn string) *BunStore {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	return &BunStore{db: db}
}

func (s *BunStore) InitSchema(ctx context.Context) error {
	models := []interface{}{
		(*SnapshotModel)(nil),
		(*FunctionModel)(nil),
	}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// SnapshotModel is the run-level row: one per exploration run, holding the
// full UTG as jsonb.
type SnapshotModel struct {
	bun.BaseModel `bun:"table:run_snapshots,alias:rs"`

	RunID        string    `bun:"run_id,pk"`
	AppPackage   string    `bun:"app_package"`
	StatesJSON   []byte    `bun:"states_json,type:jsonb"`
	ClustersJSON []byte    `bun:"clusters_json,type:jsonb"`
	UpdatedAt    time.Time `bun:"updated_at"`
}

func newSnapshotModel(s *RunSnapshot) *SnapshotModel {
	return &SnapshotModel{
		RunID:        s.RunID,
		AppPackage:   s.AppPackage,
		StatesJSON:   s.StatesJSON,
		ClustersJSON: s.ClustersJSON,
		UpdatedAt:    time.Now(),
	}
}

func (m *SnapshotModel) toDomain() *RunSnapshot {
	return &RunSnapshot{
		RunID:        m.RunID,
		AppPackage:   m.AppPackage,
		StatesJSON:   m.StatesJSON,
		ClustersJSON: m.ClustersJSON,
	}
}

// FunctionModel is one discovered-function row, kept alongside the snapshot
// so an operator can query "which functions remain untested" without
// deserializing the whole UTG.
type FunctionModel struct {
	bun.BaseModel `bun:"table:cluster_functions,alias:cf"`

	RunID      string `bun:"run_id,pk"`
	ClusterID  int    `bun:"cluster_id,pk"`
	Name       string `bun:"name,pk"`
	WidgetID   int    `bun:"widget_id"`
	Importance int    `bun:"importance"`
}

func (s *BunStore) SaveSnapshot(ctx context.Context, snap *RunSnapshot) error {
	model := newSnapshotModel(snap)
	_, err := s.db.NewInsert().Model(model).On("CONFLICT (run_id) DO UPDATE").Exec(ctx)
	return err
}

func (s *BunStore) GetSnapshot(ctx context.Context, runID string) (*RunSnapshot, error) {
	model := new(SnapshotModel)
	err := s.db.NewSelect().Model(model).Where("run_id = ?", runID).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return model.toDomain(), nil
}

func (s *BunStore) ListSnapshots(ctx context.Context) ([]*RunSnapshot, error) {
	var models []*SnapshotModel
	if err := s.db.NewSelect().Model(&models).Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]*RunSnapshot, len(models))
	for i, m := range models {
		out[i] = m.toDomain()
	}
	return out, nil
}

// SaveFunctionTable replaces every FunctionModel row for runID/clusterID
// with the given rows, inside a transaction (spec.md §4.C function table).
func (s *BunStore) SaveFunctionTable(ctx context.Context, runID string, clusterID int, rows []*FunctionModel) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewDelete().Model((*FunctionModel)(nil)).
			Where("run_id = ? AND cluster_id = ?", runID, clusterID).Exec(ctx)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		_, err = tx.NewInsert().Model(&rows).Exec(ctx)
		return err
	})
}
