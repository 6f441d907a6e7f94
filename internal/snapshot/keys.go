package snapshot

// DefaultKey enumerates the recognized system-default keys. The set is
// closed: adding a key means adding a constant here and a case in
// applyDefault, which keeps unknown-key handling a compile-time-visible
// concern instead of string dispatch scattered through the builder.
type DefaultKey string

const (
	// KeyMaxSpawnDepth caps how deep agents may delegate. Integer,
	// clamped to [1, 5].
	KeyMaxSpawnDepth DefaultKey = "max_spawn_depth"

	// KeyBroadcastEnabled toggles broadcast messaging. Boolean.
	KeyBroadcastEnabled DefaultKey = "broadcast_enabled"

	// KeyDefaultModel names the model used by agents with no explicit
	// configuration row. String.
	KeyDefaultModel DefaultKey = "default_model"
)

// Clamp bounds for KeyMaxSpawnDepth.
const (
	minSpawnDepth = 1
	maxSpawnDepth = 5
)

// recognized reports whether key is in the whitelist.
func recognized(key DefaultKey) bool {
	switch key {
	case KeyMaxSpawnDepth, KeyBroadcastEnabled, KeyDefaultModel:
		return true
	}
	return false
}
