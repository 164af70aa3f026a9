package main

import (
	"fmt"
	"os/user"
	"strconv"
	"syscall"
)

// dropPrivileges switches the running process to runAs, the same "bind as
// root, then drop" pattern the original daemon's -run_as flag names. It is
// a no-op for "" (and for "root", since there is nothing to drop to) and
// must be called after every privileged listener is already open.
func dropPrivileges(runAs string) error {
	if runAs == "" || runAs == "root" {
		return nil
	}
	u, err := user.Lookup(runAs)
	if err != nil {
		return fmt.Errorf("run_as: looking up user %q: %w", runAs, err)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return fmt.Errorf("run_as: parsing gid for %q: %w", runAs, err)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return fmt.Errorf("run_as: parsing uid for %q: %w", runAs, err)
	}
	if err := syscall.Setgid(gid); err != nil {
		return fmt.Errorf("run_as: setgid %d: %w", gid, err)
	}
	if err := syscall.Setuid(uid); err != nil {
		return fmt.Errorf("run_as: setuid %d: %w", uid, err)
	}
	return nil
}
