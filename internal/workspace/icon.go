package workspace

// setFolderIcon is a platform hook for branding the workspace root in a
// desktop file browser. The teacher's darwin variant sets a custom Finder
// icon via osascript and an embedded .icns asset; that asset isn't part of
// this module, and no desktop integration is in scope here, so this is a
// no-op on every platform.
func setFolderIcon(dirPath string) error {
	return nil
}
