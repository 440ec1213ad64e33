// Package reference implements the template reference grammar of spec §4.4
// and §6: `[namespace/]name[:tag][@sha256:hex]`. Parsing follows the
// original Rust implementation's approach of splitting from the right:
// first the digest after the rightmost '@', then the tag after the
// rightmost ':', then the namespace before the rightmost '/'.
package reference

import (
	"regexp"
	"strings"

	"github.com/papermake/papermake/pkg/digest"
	"github.com/papermake/papermake/pkg/errs"
)

// DefaultTag is used when a reference names no tag.
const DefaultTag = "latest"

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)

// immutableTagPattern matches tags that, once published, are immutable
// (spec §3): semantic-version-like strings such as v1, v1.2, v1.2.3-rc1.
var immutableTagPattern = regexp.MustCompile(`^v[0-9]+(\.[0-9]+){0,2}(-[a-z0-9.-]+)?$`)

// Reference is the value-typed triple (namespace?, name, selector) from
// spec §3. Tag and Digest are both optional but at least one of them is
// always set after a successful Parse (Tag defaults to "latest").
type Reference struct {
	Namespace *string
	Name      string
	Tag       *string
	Digest    *digest.Digest
}

// IsImmutableTag reports whether tag matches the immutable-tag pattern of
// spec §3.
func IsImmutableTag(tag string) bool {
	return immutableTagPattern.MatchString(tag)
}

// Parse parses s per the grammar in spec §4.4 and §6.
func Parse(s string) (Reference, error) {
	rest := s
	var dig *digest.Digest

	if idx := strings.LastIndex(rest, "@"); idx >= 0 {
		digStr := rest[idx+1:]
		d, err := digest.Parse(digStr)
		if err != nil {
			return Reference{}, errs.Newf(errs.InvalidReference, "malformed digest in reference %q", s).Wrap(err)
		}
		dig = &d
		rest = rest[:idx]
	}

	var tag *string
	if idx := strings.LastIndex(rest, ":"); idx >= 0 {
		t := rest[idx+1:]
		if err := validateName(t); err != nil && !IsImmutableTag(t) {
			return Reference{}, errs.Newf(errs.InvalidReference, "malformed tag in reference %q", s).Wrap(err)
		}
		tag = &t
		rest = rest[:idx]
	}

	var ns *string
	name := rest
	if idx := strings.LastIndex(rest, "/"); idx >= 0 {
		n := rest[:idx]
		if n == "" {
			return Reference{}, errs.Newf(errs.InvalidReference, "empty namespace in reference %q", s)
		}
		ns = &n
		name = rest[idx+1:]
	}

	if err := validateName(name); err != nil {
		return Reference{}, errs.Newf(errs.InvalidReference, "malformed name in reference %q", s).Wrap(err)
	}
	if ns != nil {
		if err := validateName(*ns); err != nil {
			return Reference{}, errs.Newf(errs.InvalidReference, "malformed namespace in reference %q", s).Wrap(err)
		}
	}

	if tag == nil && dig == nil {
		def := DefaultTag
		tag = &def
	}

	return Reference{Namespace: ns, Name: name, Tag: tag, Digest: dig}, nil
}

func validateName(s string) error {
	if !namePattern.MatchString(s) {
		return errs.Newf(errs.InvalidReference, "%q does not match [a-z0-9][a-z0-9_-]{0,62}", s)
	}
	return nil
}

// String renders r in its canonical textual form.
func (r Reference) String() string {
	var b strings.Builder
	if r.Namespace != nil {
		b.WriteString(*r.Namespace)
		b.WriteByte('/')
	}
	b.WriteString(r.Name)
	if r.Tag != nil {
		b.WriteByte(':')
		b.WriteString(*r.Tag)
	}
	if r.Digest != nil {
		b.WriteByte('@')
		b.WriteString(r.Digest.String())
	}
	return b.String()
}

// RefKey returns the storage key for this reference's tag, per the layout
// in spec §6. A nil r.Tag is keyed under DefaultTag; callers resolving a
// digest-only reference never reach the ref store.
func (r Reference) RefKey() string {
	tag := DefaultTag
	if r.Tag != nil {
		tag = *r.Tag
	}
	if r.Namespace != nil {
		return "refs/" + *r.Namespace + "/" + r.Name + "/" + tag
	}
	return "refs/" + r.Name + "/" + tag
}
