package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/dgo/v230"
	"github.com/dgraph-io/dgo/v230/protos/api"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// DgraphSemanticStore implements SemanticStore using Dgraph
type DgraphSemanticStore struct {
	client *dgo.Dgraph
	conn   *grpc.ClientConn
}

// NewDgraphSemanticStore creates a new Dgraph-backed semantic store
func NewDgraphSemanticStore(config *Config) (*DgraphSemanticStore, error) {
	conn, err := grpc.NewClient(config.DgraphURL, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Dgraph: %w", err)
	}

	store := &DgraphSemanticStore{
		client: dgo.NewDgraphClient(api.NewDgraphClient(conn)),
		conn:   conn,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := store.initSchema(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema sets up the Dgraph schema for concepts and relations
func (s *DgraphSemanticStore) initSchema(ctx context.Context) error {
	schema := `
		type Concept {
			concept.id
			concept.name
			concept.kind
			concept.attributes
			concept.frequency
			concept.confidence
			concept.updated
			concept.related
		}

		type Relation {
			rel.id
			rel.type
			rel.strength
			rel.count
			rel.from
			rel.to
		}

		concept.id: string @index(exact) @upsert .
		concept.name: string @index(exact, trigram) .
		concept.kind: string @index(exact) .
		concept.attributes: string .
		concept.frequency: int .
		concept.confidence: float .
		concept.updated: datetime .
		concept.related: [uid] @reverse .

		rel.id: string @index(exact) @upsert .
		rel.type: string @index(exact) .
		rel.strength: float .
		rel.count: int .
		rel.from: uid @reverse .
		rel.to: uid @reverse .
	`

	return s.client.Alter(ctx, &api.Operation{Schema: schema})
}

// StoreConcept upserts a concept node keyed by concept.id
func (s *DgraphSemanticStore) StoreConcept(ctx context.Context, c *Concept) error {
	attrs, err := json.Marshal(c.Attributes)
	if err != nil {
		return fmt.Errorf("failed to marshal attributes: %w", err)
	}

	body, err := json.Marshal(map[string]interface{}{
		"uid":                "uid(c)",
		"concept.id":         c.ID,
		"concept.name":       c.Name,
		"concept.kind":       c.Kind,
		"concept.attributes": string(attrs),
		"concept.frequency":  c.Frequency,
		"concept.confidence": c.Confidence,
		"concept.updated":    c.UpdatedAt.Format(time.RFC3339),
		"dgraph.type":        "Concept",
	})
	if err != nil {
		return fmt.Errorf("failed to marshal concept: %w", err)
	}

	req := &api.Request{
		Query:     `query q($id: string) { c as var(func: eq(concept.id, $id)) }`,
		Vars:      map[string]string{"$id": c.ID},
		Mutations: []*api.Mutation{{SetJson: body}},
		CommitNow: true,
	}

	txn := s.client.NewTxn()
	defer txn.Discard(ctx)

	if _, err := txn.Do(ctx, req); err != nil {
		return fmt.Errorf("store concept %s: %w", c.ID, err)
	}
	return nil
}

// StoreRelation upserts a relation node and the direct concept edge used
// for traversal. Both endpoints must already be stored.
func (s *DgraphSemanticStore) StoreRelation(ctx context.Context, rel *Relation) error {
	relBody, err := json.Marshal(map[string]interface{}{
		"uid":          "uid(r)",
		"rel.id":       rel.ID,
		"rel.type":     rel.Type,
		"rel.strength": rel.Strength,
		"rel.count":    rel.Count,
		"rel.from":     map[string]string{"uid": "uid(f)"},
		"rel.to":       map[string]string{"uid": "uid(t)"},
		"dgraph.type":  "Relation",
	})
	if err != nil {
		return fmt.Errorf("failed to marshal relation: %w", err)
	}
	edgeBody, err := json.Marshal(map[string]interface{}{
		"uid":             "uid(f)",
		"concept.related": map[string]string{"uid": "uid(t)"},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal edge: %w", err)
	}

	req := &api.Request{
		Query: `query q($rid: string, $from: string, $to: string) {
			r as var(func: eq(rel.id, $rid))
			f as var(func: eq(concept.id, $from))
			t as var(func: eq(concept.id, $to))
		}`,
		Vars: map[string]string{"$rid": rel.ID, "$from": rel.From, "$to": rel.To},
		Mutations: []*api.Mutation{
			{Cond: "@if(eq(len(f), 1) AND eq(len(t), 1))", SetJson: relBody},
			{Cond: "@if(eq(len(f), 1) AND eq(len(t), 1))", SetJson: edgeBody},
		},
		CommitNow: true,
	}

	txn := s.client.NewTxn()
	defer txn.Discard(ctx)

	if _, err := txn.Do(ctx, req); err != nil {
		return fmt.Errorf("store relation %s: %w", rel.ID, err)
	}
	return nil
}

// Traverse returns concepts reachable from startID within depth hops
func (s *DgraphSemanticStore) Traverse(ctx context.Context, startID string, depth int) ([]*Concept, error) {
	q := `query q($id: string, $depth: int) {
		traverse(func: eq(concept.id, $id)) @recurse(depth: $depth, loop: false) {
			concept.id
			concept.name
			concept.kind
			concept.frequency
			concept.confidence
			concept.related
		}
	}`

	txn := s.client.NewReadOnlyTxn()
	defer txn.Discard(ctx)

	// @recurse counts the root as the first level
	resp, err := txn.QueryWithVars(ctx, q, map[string]string{
		"$id":    startID,
		"$depth": strconv.Itoa(depth + 1),
	})
	if err != nil {
		return nil, fmt.Errorf("traverse failed: %w", err)
	}

	var result struct {
		Traverse []dgraphConcept `json:"traverse"`
	}
	if err := json.Unmarshal(resp.Json, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	seen := map[string]bool{startID: true}
	var out []*Concept
	var walk func(nodes []dgraphConcept)
	walk = func(nodes []dgraphConcept) {
		for _, n := range nodes {
			if !seen[n.ID] {
				seen[n.ID] = true
				out = append(out, &Concept{
					ID:         n.ID,
					Name:       n.Name,
					Kind:       n.Kind,
					Frequency:  n.Frequency,
					Confidence: n.Confidence,
				})
			}
			walk(n.Related)
		}
	}
	for _, root := range result.Traverse {
		walk(root.Related)
	}

	return out, nil
}

// Close closes the Dgraph connection
func (s *DgraphSemanticStore) Close() error {
	return s.conn.Close()
}

type dgraphConcept struct {
	ID         string          `json:"concept.id"`
	Name       string          `json:"concept.name"`
	Kind       string          `json:"concept.kind"`
	Frequency  int             `json:"concept.frequency"`
	Confidence float64         `json:"concept.confidence"`
	Related    []dgraphConcept `json:"concept.related"`
}
