package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Person is one correspondent in the contact graph.
type Person struct {
	ID                int64
	Email             string // lowercased, unique
	Name              string
	JobTitle          string
	Department        string
	OfficeLocation    string
	ManagerName       string
	InteractionCount  int
	LastInteractionAt int64
	ManualRole        string
	IsHidden          bool
	ProjectsJSON      string // JSON list of {name, role}
}

// ProjectRef is one project association on a Person.
type ProjectRef struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// Projects decodes the person's project list. Legacy bare-string entries are
// normalized to {name, role: "Contributor"}.
func (p *Person) Projects() []ProjectRef {
	return ParseProjectRefs(p.ProjectsJSON)
}

// ParseProjectRefs decodes a projects JSON document, tolerating the legacy
// format where entries were bare strings.
func ParseProjectRefs(raw string) []ProjectRef {
	if raw == "" {
		return nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil
	}

	refs := make([]ProjectRef, 0, len(entries))
	for _, e := range entries {
		var name string
		if err := json.Unmarshal(e, &name); err == nil {
			refs = append(refs, ProjectRef{Name: name, Role: "Contributor"})
			continue
		}
		var ref ProjectRef
		if err := json.Unmarshal(e, &ref); err == nil && ref.Name != "" {
			refs = append(refs, ref)
		}
	}
	return refs
}

// EncodeProjectRefs renders a project list back to its JSON column form.
func EncodeProjectRefs(refs []ProjectRef) string {
	if refs == nil {
		refs = []ProjectRef{}
	}
	raw, _ := json.Marshal(refs)
	return string(raw)
}

// PersonFilter selects people for listing.
type PersonFilter struct {
	Search        string // matches name, email, job title or department
	Role          string // manual_role equality; "Unclassified" matches empty
	IncludeHidden bool
}

// CreatePerson inserts a new correspondent. The email is lowercased here so
// the unique index holds regardless of caller casing.
func (s *Store) CreatePerson(p *Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.Email = strings.ToLower(p.Email)
	if p.LastInteractionAt == 0 {
		p.LastInteractionAt = time.Now().UnixMilli()
	}
	if p.ProjectsJSON == "" {
		p.ProjectsJSON = "[]"
	}

	query := `
	INSERT INTO people (
		email, name, job_title, department, office_location, manager_name,
		interaction_count, last_interaction_at, manual_role, is_hidden, projects
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := s.db.Exec(query,
		p.Email, nullStr(p.Name), nullStr(p.JobTitle), nullStr(p.Department),
		nullStr(p.OfficeLocation), nullStr(p.ManagerName),
		p.InteractionCount, p.LastInteractionAt,
		nullStr(p.ManualRole), boolToInt(p.IsHidden), p.ProjectsJSON,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create person: %w", err)
	}

	p.ID, _ = res.LastInsertId()
	return nil
}

// GetPersonByEmail looks up a correspondent by (lowercased) address.
// Returns nil when absent.
func (s *Store) GetPersonByEmail(email string) (*Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(personSelect+` WHERE email = ?`, strings.ToLower(email))
	p, err := scanPerson(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get person: %w", err)
	}
	return p, nil
}

// RecordInteraction increments the interaction counter, refreshes the last
// interaction time and backfills the display name if it is still empty.
func (s *Store) RecordInteraction(id int64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
	UPDATE people
	SET interaction_count = interaction_count + 1,
	    last_interaction_at = ?,
	    name = CASE WHEN (name IS NULL OR name = '') AND ? != '' THEN ? ELSE name END
	WHERE id = ?
	`
	_, err := s.db.Exec(query, time.Now().UnixMilli(), name, name, id)
	if err != nil {
		return fmt.Errorf("failed to record interaction: %w", err)
	}
	return nil
}

// SetPersonProjects replaces the person's project association list.
func (s *Store) SetPersonProjects(id int64, projectsJSON string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`UPDATE people SET projects = ? WHERE id = ?`, projectsJSON, id)
	if err != nil {
		return fmt.Errorf("failed to set person projects: %w", err)
	}
	return nil
}

// UpdatePersonProfile sets the operator-editable fields.
func (s *Store) UpdatePersonProfile(id int64, manualRole string, hidden bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE people SET manual_role = ?, is_hidden = ? WHERE id = ?`,
		nullStr(manualRole), boolToInt(hidden), id)
	if err != nil {
		return fmt.Errorf("failed to update person: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("person not found: %d", id)
	}
	return nil
}

// ListPeople retrieves correspondents matching the filter, most-contacted
// first.
func (s *Store) ListPeople(f PersonFilter) ([]*Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := personSelect
	var conds []string
	var args []interface{}

	if !f.IncludeHidden {
		conds = append(conds, `is_hidden = 0`)
	}
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		conds = append(conds, `(LOWER(IFNULL(name,'')) LIKE ? OR email LIKE ? OR LOWER(IFNULL(job_title,'')) LIKE ? OR LOWER(IFNULL(department,'')) LIKE ?)`)
		args = append(args, like, like, like, like)
	}
	if f.Role == "Unclassified" {
		conds = append(conds, `(manual_role IS NULL OR manual_role = '')`)
	} else if f.Role != "" {
		conds = append(conds, `manual_role = ?`)
		args = append(args, f.Role)
	}

	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	query += ` ORDER BY interaction_count DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list people: %w", err)
	}
	defer rows.Close()

	var people []*Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		people = append(people, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating people: %w", err)
	}
	return people, nil
}

const personSelect = `
	SELECT id, email, name, job_title, department, office_location,
	       manager_name, interaction_count, last_interaction_at,
	       manual_role, is_hidden, projects
	FROM people
`

func scanPerson(r rowScanner) (*Person, error) {
	p := &Person{}
	var (
		name, title, dept, office, manager, role sql.NullString
		lastAt                                   sql.NullInt64
		hidden                                   int
	)
	err := r.Scan(&p.ID, &p.Email, &name, &title, &dept, &office, &manager,
		&p.InteractionCount, &lastAt, &role, &hidden, &p.ProjectsJSON)
	if err != nil {
		return nil, err
	}
	p.Name = name.String
	p.JobTitle = title.String
	p.Department = dept.String
	p.OfficeLocation = office.String
	p.ManagerName = manager.String
	p.ManualRole = role.String
	p.LastInteractionAt = lastAt.Int64
	p.IsHidden = hidden != 0
	return p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
