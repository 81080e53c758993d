// Package sysinfo probes local host facts (hostname, address, CPU count,
// available memory) for publication on the compute relation.
package sysinfo
