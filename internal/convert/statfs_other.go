//go:build !linux

package convert

func isRemoteOrRemovable(string) bool { return false }
