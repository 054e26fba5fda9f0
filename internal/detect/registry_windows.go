//go:build windows

package detect

import (
	"fmt"

	"golang.org/x/sys/windows/registry"
)

const beaconKey = `Software\Google\Chrome\BLBeacon`

var platformRegistryReader RegistryReader = readChromeBeacon

// readChromeBeacon reads the version Chrome's updater records, per-user first.
func readChromeBeacon() (string, string, error) {
	roots := []struct {
		key  registry.Key
		name string
	}{
		{registry.CURRENT_USER, `HKCU`},
		{registry.LOCAL_MACHINE, `HKLM`},
	}

	var lastErr error
	for _, root := range roots {
		k, err := registry.OpenKey(root.key, beaconKey, registry.QUERY_VALUE)
		if err != nil {
			lastErr = err
			continue
		}
		v, _, err := k.GetStringValue("version")
		_ = k.Close()
		if err != nil {
			lastErr = err
			continue
		}
		return v, root.name + `\` + beaconKey, nil
	}
	return "", "", fmt.Errorf("read %s: %w", beaconKey, lastErr)
}
