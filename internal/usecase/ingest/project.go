package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/santoshnarayanan/sda/internal/corpus"
)

// TagProject marks points that came from a project upload.
const TagProject = "project"

// ProjectReport is the outcome of a project upload.
type ProjectReport struct {
	Collection string
	Report
}

// Slugify lower-cases ASCII letters and digits and replaces every other run of characters with "-".
func Slugify(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	dash := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.Trim(b.String(), "-")
}

// ProjectCollectionName names the collection of an uploaded project: project_{owner}_{slug},
// suffixed with the unix time when shard is set. An empty slug becomes proj-{unix}.
func ProjectCollectionName(owner, project string, at time.Time, shard bool) string {
	slug := Slugify(project)
	if slug == "" {
		slug = fmt.Sprintf("proj-%d", at.Unix())
	}
	o := Slugify(owner)
	if o == "" {
		o = "default"
	}
	name := fmt.Sprintf("project_%s_%s", o, slug)
	if shard {
		name = fmt.Sprintf("%s_%d", name, at.Unix())
	}
	return name
}

// IngestProject ingests a zip archive into the project's own collection.
func (s *Service) IngestProject(
	ctx context.Context, owner, project string, archive []byte, shard bool,
) (ProjectReport, error) {
	name := ProjectCollectionName(owner, project, s.now(), shard)
	tags := map[string]string{}
	if slug := Slugify(project); slug != "" {
		tags[TagProject] = slug
	}

	rep, err := s.Ingest(ctx, corpus.Zip{Data: archive, MaxBytes: s.opts.MaxFileBytes}, Request{
		Collection: name,
		Tags:       tags,
		Namespace:  NamespaceDocs,
		Owner:      owner,
	})
	return ProjectReport{Collection: name, Report: rep}, err
}
