/*
Package system abstracts the host's package manager, service manager, and
filesystem behind a single capability interface.

HostSystem is the production implementation (apt-get, systemctl, atomic file
writes). Recorder is the test double used throughout the repository to count
and fail individual operations.
*/
package system
