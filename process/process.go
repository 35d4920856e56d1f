// Package process owns the handle to the target process and the raw
// read/write primitives everything else is built on.
package process

import (
	"fmt"
	"strings"
	"unsafe"

	"golang.org/x/sys/windows"
)

// ErrNotFound is returned when the target process is not running.
var ErrNotFound = fmt.Errorf("process not found")

// FindProcess returns the PID of the first process with the given image name.
func FindProcess(name string) (uint32, error) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return 0, fmt.Errorf("process snapshot: %w", err)
	}
	defer windows.CloseHandle(snap)

	var pe windows.ProcessEntry32
	pe.Size = uint32(unsafe.Sizeof(pe))
	if err := windows.Process32First(snap, &pe); err != nil {
		return 0, fmt.Errorf("process walk: %w", err)
	}
	for {
		if strings.EqualFold(windows.UTF16ToString(pe.ExeFile[:]), name) {
			return pe.ProcessID, nil
		}
		if windows.Process32Next(snap, &pe) != nil {
			break
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// GetModuleBase returns the load address of a module inside the process.
func GetModuleBase(pid uint32, name string) (uintptr, error) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPMODULE|windows.TH32CS_SNAPMODULE32, pid)
	if err != nil {
		return 0, fmt.Errorf("module snapshot: %w", err)
	}
	defer windows.CloseHandle(snap)

	var me windows.ModuleEntry32
	me.Size = uint32(unsafe.Sizeof(me))
	if err := windows.Module32First(snap, &me); err != nil {
		return 0, fmt.Errorf("module walk: %w", err)
	}
	for {
		if strings.EqualFold(windows.UTF16ToString(me.Module[:]), name) {
			return uintptr(me.ModBaseAddr), nil
		}
		if windows.Module32Next(snap, &me) != nil {
			break
		}
	}
	return 0, fmt.Errorf("%w: module %s", ErrNotFound, name)
}
