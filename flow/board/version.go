package board

// VersionKind selects which component of the version triple bumps.
type VersionKind string

const (
	KindMajor VersionKind = "major"
	KindMinor VersionKind = "minor"
	KindPatch VersionKind = "patch"
)

// NextVersion computes the successor version per semver rules:
// Major bumps major and zeroes minor/patch; Minor bumps minor and zeroes
// patch; Patch only bumps patch.
func NextVersion(current Version, kind VersionKind) Version {
	switch kind {
	case KindMajor:
		return Version{current[0] + 1, 0, 0}
	case KindMinor:
		return Version{current[0], current[1] + 1, 0}
	default:
		return Version{current[0], current[1], current[2] + 1}
	}
}

// CreateVersion materializes the current board state under a new
// version tuple (the prior tuple remains immutable) and returns the
// new snapshot. The caller (BoardStore-backed service) is responsible
// for persisting the returned snapshot and appending it to the version
// index; CreateVersion itself only computes the in-memory transition.
func (b *Board) CreateVersion(kind VersionKind) *Board {
	b.mu.Lock()
	next := NextVersion(b.Version, kind)
	b.mu.Unlock()

	snapshot := b.Clone()
	snapshot.Version = next

	b.mu.Lock()
	b.Version = next
	b.mu.Unlock()

	return snapshot
}
