// offsetdump fetches the current offset catalog, prints every entry and, when
// the game is running, verifies that the top-level pointers resolve.
package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"violetwing/memory"
	"violetwing/offsets"
	"violetwing/process"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	src := offsets.NewHTTPSource("")
	set, err := src.Fetch(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fetch failed:", err)
		os.Exit(1)
	}

	fmt.Printf("build %s, %d entries\n\n", set.Build, set.Len())
	names := set.Names()
	sort.Strings(names)
	for _, name := range names {
		e, _ := set.Lookup(name)
		fmt.Printf("  %-28s 0x%-10X %s\n", name, e.Offset, e.Kind)
	}

	proc := process.NewManager()
	if err := proc.Attach("cs2.exe", "client.dll"); err != nil {
		fmt.Println("\ngame not running, skipping live checks:", err)
		return
	}
	defer proc.Close()

	fmt.Printf("\npid %d, client.dll at 0x%X\n", proc.PID(), proc.ModuleBase())

	res := memory.NewResolver(proc)
	for _, name := range []string{offsets.DwEntityList, offsets.DwLocalPlayerPawn, offsets.DwViewMatrix} {
		off, err := set.MustOffset(name)
		if err != nil {
			fmt.Printf("  %-28s %v\n", name, err)
			continue
		}
		ptr, err := res.ReadPointer(proc.ModuleBase() + off)
		if err != nil {
			fmt.Printf("  %-28s read failed: %v\n", name, err)
			continue
		}
		fmt.Printf("  %-28s -> 0x%X\n", name, ptr)
	}
}
