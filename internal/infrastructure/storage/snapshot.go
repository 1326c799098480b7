package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/smilemakc/uxplore/internal/domain/utg"
)

// snapshotNode is one UTG node in a dump, grounded on __output_utg's
// utg_node dict (state id, activity, structure signature).
type snapshotNode struct {
	ID            int    `json:"id"`
	StateStr      string `json:"state_str"`
	StructureStr  string `json:"structure_str"`
	Activity      string `json:"activity"`
	ClusterID     int    `json:"cluster_id"`
	ClusterKnown  bool   `json:"cluster_known"`
}

// snapshotEdge is one applied transition, grounded on __output_utg's
// utg_edge dict.
type snapshotEdge struct {
	From      int    `json:"from"`
	To        int    `json:"to"`
	EventStr  string `json:"event_str"`
	EventKind int    `json:"event_kind"`
	WidgetID  int    `json:"widget_id"`
}

// snapshotDoc is the full document written to disk, grounded on
// __output_utg's summary-stats block (num_nodes, num_edges,
// num_reached_activities, time_spent, ...).
type snapshotDoc struct {
	AppPackage           string         `json:"app_package"`
	TestDate             string         `json:"test_date"`
	TimeSpentSeconds     float64        `json:"time_spent_seconds"`
	NumNodes             int            `json:"num_nodes"`
	NumEdges             int            `json:"num_edges"`
	NumEffectiveEvents   int            `json:"num_effective_events"`
	NumReachedActivities int            `json:"num_reached_activities"`
	NumTransitions       int            `json:"num_transitions"`
	Nodes                []snapshotNode `json:"nodes"`
	Edges                []snapshotEdge `json:"edges"`
}

// SnapshotWriter dumps a UTG's current nodes and transitions to a plain
// JSON file under an output directory, the Go-native replacement for
// droidbot's utg.js (which wraps the same JSON in a `var utg = ...`
// assignment for direct <script> inclusion; nothing here consumes a
// browser, so the wrapper is dropped in favour of a parseable .json file).
type SnapshotWriter struct {
	outputDir string
	appPkg    string
	startTime time.Time
}

func NewSnapshotWriter(outputDir, appPackage string) *SnapshotWriter {
	return &SnapshotWriter{outputDir: outputDir, appPkg: appPackage, startTime: time.Now()}
}

// Write renders u's current nodes and edges to <outputDir>/utg.json.
func (w *SnapshotWriter) Write(u *utg.UTG) error {
	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return fmt.Errorf("creating snapshot output dir: %w", err)
	}

	states := u.States()
	nodes := make([]snapshotNode, 0, len(states))
	for _, s := range states {
		clusterID, known := s.Cluster()
		nodes = append(nodes, snapshotNode{
			ID:           s.ID(),
			StateStr:     s.StateStr(),
			StructureStr: s.StructureStr(),
			Activity:     s.ForegroundActivity(),
			ClusterID:    clusterID,
			ClusterKnown: known,
		})
	}

	transitions := u.Transitions()
	edges := make([]snapshotEdge, 0, len(transitions))
	for _, t := range transitions {
		edges = append(edges, snapshotEdge{
			From:      t.Old.ID(),
			To:        t.New.ID(),
			EventKind: int(t.Event.Kind),
			WidgetID:  t.Event.WidgetID,
		})
	}

	doc := snapshotDoc{
		AppPackage:           w.appPkg,
		TestDate:             w.startTime.Format("2006-01-02 15:04:05"),
		TimeSpentSeconds:     time.Since(w.startTime).Seconds(),
		NumNodes:             len(nodes),
		NumEdges:             len(edges),
		NumEffectiveEvents:   u.EffectiveEventCount(),
		NumReachedActivities: len(u.ReachedActivities()),
		NumTransitions:       u.NumTransitions(),
		Nodes:                nodes,
		Edges:                edges,
	}

	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling utg snapshot: %w", err)
	}

	path := filepath.Join(w.outputDir, "utg.json")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("writing utg snapshot: %w", err)
	}
	return nil
}

// ToRunSnapshot renders u into a RunSnapshot ready for Store.SaveSnapshot,
// separating the node list from the cluster function table so a caller can
// persist both without re-walking the graph twice.
func (w *SnapshotWriter) ToRunSnapshot(runID string, u *utg.UTG) (*RunSnapshot, error) {
	states := u.States()
	nodes := make([]snapshotNode, 0, len(states))
	for _, s := range states {
		clusterID, known := s.Cluster()
		nodes = append(nodes, snapshotNode{
			ID: s.ID(), StateStr: s.StateStr(), StructureStr: s.StructureStr(),
			Activity: s.ForegroundActivity(), ClusterID: clusterID, ClusterKnown: known,
		})
	}
	statesJSON, err := json.Marshal(nodes)
	if err != nil {
		return nil, err
	}

	clusters := u.Clusters()
	type clusterRow struct {
		ID       int               `json:"id"`
		Overview string            `json:"overview"`
		Top5     []string          `json:"top5"`
	}
	rows := make([]clusterRow, 0, len(clusters))
	for _, c := range clusters {
		top := c.WriteTop5(true)
		rows = append(rows, clusterRow{ID: c.ID(), Overview: top.Overview, Top5: top.FunctionList})
	}
	clustersJSON, err := json.Marshal(rows)
	if err != nil {
		return nil, err
	}

	return &RunSnapshot{
		RunID:        runID,
		AppPackage:   w.appPkg,
		StatesJSON:   statesJSON,
		ClustersJSON: clustersJSON,
	}, nil
}
