//go:build !linux

package storefs

func renameNoReplace(oldname, newname string) error {
	return linkRename(oldname, newname)
}
