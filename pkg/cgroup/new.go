package cgroup

// New picks a Driver for mount: v2 if it is a live cgroup2 hierarchy,
// otherwise the legacy v1 driver. Callers that want to force one or the
// other construct NewV2Driver/NewV1Driver directly instead of calling New.
func New(mount string) Driver {
	if Detect(mount) {
		return NewV2Driver(mount)
	}
	return NewV1Driver()
}
