package importer

import (
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// ReferenceTables maps human-readable references to internal identifiers.
// Keys are lower-cased full strings. Tables are fetched fresh at commit
// time and live only for one commit: staff may be added mid-session, so
// nothing here is ever cached across sessions.
type ReferenceTables struct {
	MembersByEmail map[string]uuid.UUID
	CreatorsByName map[string]uuid.UUID
}

// NewReferenceTables builds lookup tables from raw email/name listings.
func NewReferenceTables(members map[string]uuid.UUID, creators map[string]uuid.UUID) ReferenceTables {
	t := ReferenceTables{
		MembersByEmail: make(map[string]uuid.UUID, len(members)),
		CreatorsByName: make(map[string]uuid.UUID, len(creators)),
	}
	for email, id := range members {
		t.MembersByEmail[normalizeRef(email)] = id
	}
	for name, id := range creators {
		t.CreatorsByName[normalizeRef(name)] = id
	}
	return t
}

// Resolve maps every record's references to identifiers, in input order.
//
// An unresolved assignee email fails the whole batch: it indicates a
// data-entry mistake likely to recur across rows, and a partial commit
// would leave an inconsistent task set. An unresolved creator name is not
// an error; the task is simply created with no creator.
func Resolve(records []TaskRecord, refs ReferenceTables) ([]ResolvedTask, error) {
	resolved := make([]ResolvedTask, 0, len(records))

	for _, rec := range records {
		memberID, ok := refs.MembersByEmail[normalizeRef(rec.AssigneeEmail)]
		if !ok {
			return nil, &ResolutionError{Email: rec.AssigneeEmail}
		}

		var creatorID pgtype.UUID
		if rec.CreatorName != "" {
			if id, ok := refs.CreatorsByName[normalizeRef(rec.CreatorName)]; ok {
				creatorID = pgtype.UUID{Bytes: id, Valid: true}
			}
		}

		resolved = append(resolved, ResolvedTask{
			Title:       rec.Title,
			Description: rec.Description,
			Status:      rec.Status,
			DueDate:     rec.DueDate,
			AssignedTo:  memberID,
			CreatorID:   creatorID,
		})
	}

	return resolved, nil
}

func normalizeRef(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
