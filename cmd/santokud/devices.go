package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	evdev "github.com/holoplot/go-evdev"
)

// deviceInfo describes one evdev node for `santokud list-devices`.
type deviceInfo struct {
	Path string
	Name string
	Role string // suggested input.devices role, "" if none fits
}

// suggestRole guesses the role from the device's capabilities.
func suggestRole(rel, key []evdev.EvCode) string {
	has := func(codes []evdev.EvCode, want uint16) bool {
		for _, c := range codes {
			if uint16(c) == want {
				return true
			}
		}
		return false
	}

	switch {
	case has(rel, REL_X) && has(rel, REL_Y):
		return RolePointer
	case has(rel, REL_WHEEL) || has(rel, REL_DIAL):
		return RoleEncoder
	case has(key, KEY_TAB) && has(key, KEY_LEFTSHIFT):
		return RoleKeyboard
	default:
		return ""
	}
}

// scanDevices lists evdev nodes. Nodes that can't be opened are still
// listed, without a role.
func scanDevices() ([]deviceInfo, error) {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return nil, fmt.Errorf("list input devices: %w", err)
	}

	infos := make([]deviceInfo, 0, len(paths))
	for _, p := range paths {
		info := deviceInfo{Path: p.Path, Name: p.Name}
		if dev, err := evdev.Open(p.Path); err == nil {
			info.Role = suggestRole(dev.CapableEvents(evdev.EV_REL), dev.CapableEvents(evdev.EV_KEY))
			dev.Close()
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}

func writeDeviceTable(w io.Writer, infos []deviceInfo) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tROLE\tNAME")
	for _, d := range infos {
		role := d.Role
		if role == "" {
			role = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Path, role, d.Name)
	}
	return tw.Flush()
}

// runListDevices implements the list-devices subcommand.
func runListDevices(w io.Writer) error {
	infos, err := scanDevices()
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Fprintln(w, "no input devices found (try running as root or joining the 'input' group)")
		return nil
	}
	return writeDeviceTable(w, infos)
}
