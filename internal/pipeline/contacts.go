package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/nbakr/mailtriage/internal/ews"
	"github.com/nbakr/mailtriage/internal/store"
)

// updateCircle upserts the sender into the contact graph. It is best-effort:
// any failure is logged and swallowed so a broken directory or a bad row
// never costs the run a message.
func (p *Pipeline) updateCircle(ctx context.Context, log zerolog.Logger, m ews.Message, projectName string) {
	email := strings.ToLower(strings.TrimSpace(m.Sender.Email))
	if email == "" || email == p.operatorEmail {
		return
	}

	person, err := p.store.GetPersonByEmail(email)
	if err != nil {
		log.Warn().Err(err).Str("email", email).Msg("contact lookup failed")
		return
	}

	if person == nil {
		person = &store.Person{
			Email:            email,
			Name:             m.Sender.Name,
			InteractionCount: 1,
		}
		if entry := p.lookupDirectory(ctx, email); entry != nil {
			if entry.Name != "" {
				person.Name = entry.Name
			}
			person.JobTitle = entry.JobTitle
			person.Department = entry.Department
			person.OfficeLocation = entry.Office
			person.ManagerName = entry.Manager
		}
		if ref, ok := projectRef(projectName); ok {
			person.ProjectsJSON = store.EncodeProjectRefs([]store.ProjectRef{ref})
		}

		err := p.store.CreatePerson(person)
		if err == nil {
			return
		}
		if !errors.Is(err, store.ErrDuplicate) {
			log.Warn().Err(err).Str("email", email).Msg("contact insert failed")
			return
		}
		// Lost a race with another writer; fall through to the update path.
		if person, err = p.store.GetPersonByEmail(email); err != nil || person == nil {
			return
		}
	}

	if err := p.store.RecordInteraction(person.ID, m.Sender.Name); err != nil {
		log.Warn().Err(err).Str("email", email).Msg("interaction update failed")
		return
	}

	ref, ok := projectRef(projectName)
	if !ok {
		return
	}
	refs := person.Projects()
	for _, r := range refs {
		if strings.EqualFold(r.Name, ref.Name) {
			return
		}
	}
	refs = append(refs, ref)
	if err := p.store.SetPersonProjects(person.ID, store.EncodeProjectRefs(refs)); err != nil {
		log.Warn().Err(err).Str("email", email).Msg("project merge failed")
	}
}

// projectRef validates a project name for merging; the Unknown sentinel and
// blanks never enter a person's project list.
func projectRef(name string) (store.ProjectRef, bool) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, projectUnknown) {
		return store.ProjectRef{}, false
	}
	return store.ProjectRef{Name: name, Role: "Contributor"}, true
}

// lookupDirectory memoizes successful directory resolutions; failures are
// not cached so a transient outage does not pin a miss.
func (p *Pipeline) lookupDirectory(ctx context.Context, email string) *ews.DirectoryEntry {
	if p.directory == nil {
		return nil
	}
	if entry, ok := p.dirCache.Get(email); ok {
		return entry
	}
	entry := p.directory.ResolveName(ctx, email)
	if entry != nil {
		p.dirCache.Put(email, entry)
	}
	return entry
}
