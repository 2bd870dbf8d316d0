package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/geocoder89/herapt/internal/domain/user"
)

type UserLoader interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

// MatchGraph mirrors each mentee's stored mentor matches as (:User)-[:MATCHED]->(:User) edges.
// The user store stays authoritative; the graph only answers "who was matched to this mentor".
type MatchGraph struct {
	client Client
	users  UserLoader
}

func NewMatchGraph(client Client, users UserLoader) *MatchGraph {
	return &MatchGraph{client: client, users: users}
}

const replaceMatchesCypher = `
MERGE (m:User {id: $menteeId})
WITH m
OPTIONAL MATCH (m)-[old:MATCHED]->()
DELETE old
WITH DISTINCT m
UNWIND $matches AS match
MERGE (t:User {id: match.mentorId})
MERGE (m)-[r:MATCHED]->(t)
SET r.score = match.score, r.matchedAt = match.matchedAt`

const menteesOfCypher = `
MATCH (m:User)-[:MATCHED]->(:User {id: $mentorId})
RETURN m.id AS id
ORDER BY id`

// RecordMatches replaces the mentee's outgoing MATCHED edges.
func (g *MatchGraph) RecordMatches(ctx context.Context, menteeID string, matches []user.MentorMatch) error {
	rows := make([]map[string]any, 0, len(matches))
	for _, m := range matches {
		rows = append(rows, map[string]any{
			"mentorId":  m.MentorID,
			"score":     m.CompatibilityScore,
			"matchedAt": m.Timestamp.UnixMilli(),
		})
	}

	_, err := g.client.ExecuteWrite(ctx, replaceMatchesCypher, map[string]any{
		"menteeId": menteeID,
		"matches":  rows,
	})
	if err != nil {
		return fmt.Errorf("record matches: %w", err)
	}
	return nil
}

// ListMenteesMatchedTo resolves the graph's mentee ids against the user store.
// Ids that no longer resolve to a mentee are skipped.
func (g *MatchGraph) ListMenteesMatchedTo(ctx context.Context, mentorID string) ([]user.User, error) {
	res, err := g.client.ExecuteRead(ctx, menteesOfCypher, map[string]any{"mentorId": mentorID})
	if err != nil {
		return nil, fmt.Errorf("query mentees: %w", err)
	}

	out := make([]user.User, 0, len(res.Records))
	for _, rec := range res.Records {
		id, _ := rec["id"].(string)
		if id == "" {
			continue
		}

		u, err := g.users.GetByID(ctx, id)
		if errors.Is(err, user.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if u.Role != user.RoleMentee {
			continue
		}

		out = append(out, u)
	}

	return out, nil
}
