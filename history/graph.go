package history

import (
	"sort"
)

// Graph is a read-only view of one presentation's branches and commits.
type Graph struct {
	branches []*Branch
	commits  map[string]*Commit
}

// NewGraph indexes branches and commits. Commits may be given in any order.
func NewGraph(branches []*Branch, commits []*Commit) *Graph {
	g := &Graph{
		branches: branches,
		commits:  make(map[string]*Commit, len(commits)),
	}
	for _, c := range commits {
		g.commits[c.ID] = c
	}
	return g
}

// Empty reports whether the presentation has no commits yet.
func (g *Graph) Empty() bool {
	return len(g.commits) == 0
}

// Commit looks up a commit by id.
func (g *Graph) Commit(id string) (*Commit, bool) {
	c, ok := g.commits[id]
	return c, ok
}

// Branch looks up a branch by name.
func (g *Graph) Branch(name string) (*Branch, bool) {
	for _, b := range g.branches {
		if b.Name == name {
			return b, true
		}
	}
	return nil, false
}

// DefaultBranch returns the branch flagged default. If none is flagged the
// oldest branch is used.
func (g *Graph) DefaultBranch() (*Branch, bool) {
	var oldest *Branch
	for _, b := range g.branches {
		if b.IsDefault {
			return b, true
		}
		if oldest == nil || b.CreatedAt < oldest.CreatedAt {
			oldest = b
		}
	}
	return oldest, oldest != nil
}

// Tip resolves the commit a branch currently points at: its head when set,
// otherwise the most recent commit made on the branch. ok is false for a
// branch without history.
func (g *Graph) Tip(b *Branch) (*Commit, bool) {
	if b == nil {
		return nil, false
	}
	if b.HeadID != "" {
		if c, ok := g.commits[b.HeadID]; ok {
			return c, true
		}
	}
	var latest *Commit
	for _, c := range g.commits {
		if c.BranchID == b.ID && newer(c, latest) {
			latest = c
		}
	}
	return latest, latest != nil
}

func newer(c, than *Commit) bool {
	if than == nil {
		return true
	}
	if c.CreatedAt != than.CreatedAt {
		return c.CreatedAt > than.CreatedAt
	}
	return c.Seq > than.Seq
}

// Log walks parent links from id back to the root. The first commit is id
// itself. Merged-in history is not followed.
func (g *Graph) Log(id string, limit int) []*Commit {
	var out []*Commit
	seen := make(map[string]bool)
	for id != "" && !seen[id] {
		c, ok := g.commits[id]
		if !ok {
			break
		}
		out = append(out, c)
		if limit > 0 && len(out) >= limit {
			break
		}
		seen[id] = true
		id = c.ParentID
	}
	return out
}

// Ancestors returns every commit reachable from id through parent and
// merged-from links, including id itself.
func (g *Graph) Ancestors(id string) map[string]*Commit {
	out := make(map[string]*Commit)
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == "" {
			continue
		}
		if _, done := out[cur]; done {
			continue
		}
		c, ok := g.commits[cur]
		if !ok {
			continue
		}
		out[cur] = c
		queue = append(queue, c.ParentID, c.MergedFromID)
	}
	return out
}

// IsAncestor reports whether ancestor is reachable from descendant. A commit
// is its own ancestor.
func (g *Graph) IsAncestor(ancestor, descendant string) bool {
	_, ok := g.Ancestors(descendant)[ancestor]
	return ok
}

// CommonAncestor returns the most recent commit reachable from both a and b.
// ok is false when the two histories share nothing.
func (g *Graph) CommonAncestor(a, b string) (*Commit, bool) {
	fromA := g.Ancestors(a)
	fromB := g.Ancestors(b)

	var common []*Commit
	for id, c := range fromA {
		if _, ok := fromB[id]; ok {
			common = append(common, c)
		}
	}
	if len(common) == 0 {
		return nil, false
	}
	sort.Slice(common, func(i, j int) bool { return newer(common[i], common[j]) })
	return common[0], true
}
