package datastream

import (
	"os"
	"os/user"
	"strconv"
	"syscall"
)

// AllowedKeys is a set of metadata key names the caller wants captured.
type AllowedKeys map[string]struct{}

// NewAllowedKeys builds an AllowedKeys set from a slice of key names.
func NewAllowedKeys(keys []string) AllowedKeys {
	out := make(AllowedKeys, len(keys))
	for _, k := range keys {
		out[k] = struct{}{}
	}
	return out
}

func (a AllowedKeys) has(key string) bool {
	if a == nil {
		return false
	}
	_, ok := a[key]
	return ok
}

// CollectMetadata stats path and returns its size, its EntryKind, and a
// map of the allowed metadata keys it could resolve. Per §4.4, keys
// that cannot be resolved on this platform/file are silently omitted
// rather than failing the whole call.
func CollectMetadata(path string, allowed AllowedKeys) (size int64, kind EntryKind, meta map[string]any) {
	meta = make(map[string]any)
	fi, err := os.Lstat(path)
	if err != nil {
		return 0, KindFile, meta
	}

	kind = KindFile
	if fi.IsDir() {
		kind = KindDirectory
	}
	size = fi.Size()

	if allowed.has("pathname") {
		meta["pathname"] = path
	}
	if allowed.has("filetype") {
		meta["filetype"] = kind.String()
	}
	if allowed.has("mode") {
		meta["mode"] = fi.Mode().Perm()
	}
	if allowed.has("size") {
		meta["size"] = size
	}
	if allowed.has("mtime") {
		meta["mtime"] = fi.ModTime()
	}

	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		collectStatKeys(meta, allowed, st)
	}

	return size, kind, meta
}

func collectStatKeys(meta map[string]any, allowed AllowedKeys, st *syscall.Stat_t) {
	if allowed.has("uid") {
		meta["uid"] = st.Uid
	}
	if allowed.has("gid") {
		meta["gid"] = st.Gid
	}
	if allowed.has("uname") {
		if u, err := user.LookupId(strconv.Itoa(int(st.Uid))); err == nil {
			meta["uname"] = u.Username
		}
		// Per-key failure: omit silently rather than failing the call.
	}
	if allowed.has("gname") {
		if g, err := user.LookupGroupId(strconv.Itoa(int(st.Gid))); err == nil {
			meta["gname"] = g.Name
		}
	}
	if allowed.has("devmajor") || allowed.has("devminor") {
		major, minor := deviceNumbers(uint64(st.Rdev))
		if allowed.has("devmajor") {
			meta["devmajor"] = major
		}
		if allowed.has("devminor") {
			meta["devminor"] = minor
		}
	}
}

// deviceNumbers splits a raw rdev value into its major/minor components
// using the common Linux encoding. Platforms with a different encoding
// simply get approximate values here; devmajor/devminor are diagnostic
// metadata, not used by any traversal invariant.
func deviceNumbers(rdev uint64) (major, minor uint32) {
	major = uint32((rdev >> 8) & 0xfff)
	minor = uint32((rdev & 0xff) | ((rdev >> 12) & 0xfff00))
	return major, minor
}
