package offsets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is the cs2-dumper raw output tree.
const DefaultBaseURL = "https://raw.githubusercontent.com/a2x/cs2-dumper/main/output"

// HTTPSource fetches the dumper's JSON documents and flattens them into a Set.
type HTTPSource struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPSource builds a source against baseURL (DefaultBaseURL when empty).
func NewHTTPSource(baseURL string) *HTTPSource {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &HTTPSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// moduleOffsets mirrors offsets.json: module → name → offset.
type moduleOffsets map[string]map[string]uint64

// schemaDump mirrors client_dll.json: module → classes → class → fields.
type schemaDump map[string]struct {
	Classes map[string]struct {
		Fields map[string]uint64 `json:"fields"`
	} `json:"classes"`
}

type buildInfo struct {
	BuildNumber json.Number `json:"build_number"`
}

// globalNames are read from offsets.json under client.dll.
var globalNames = map[string]Kind{
	DwEntityList:            KindPointer,
	DwLocalPlayerPawn:       KindPointer,
	DwLocalPlayerController: KindPointer,
	DwViewMatrix:            KindMatrix,
}

// fieldNames are schema fields; their class is irrelevant here because the
// dumper keeps field names unique across the classes we care about.
var fieldNames = map[string]Kind{
	MHealth:              KindInt32,
	MTeamNum:             KindInt32,
	MIDEntIndex:          KindInt32,
	MPlayerName:          KindString,
	MOldOrigin:           KindVec3,
	MGameSceneNode:       KindPointer,
	MDormant:             KindInt32,
	MPlayerPawn:          KindPointer,
	MFlashDuration:       KindFloat32,
	MWeaponServices:      KindPointer,
	MActiveWeapon:        KindPointer,
	MAttributeManager:    KindPointer,
	MItem:                KindPointer,
	MItemDefinitionIndex: KindInt32,
	MFlags:               KindUint32,
}

// boneArrayFromModelState is the bone array's displacement from
// CSkeletonInstance.m_modelState.
const boneArrayFromModelState = 0x80

// Fetch downloads info.json, offsets.json, client_dll.json and buttons.json
// and flattens the names the builder needs into one Set.
func (s *HTTPSource) Fetch(ctx context.Context) (*Set, error) {
	var info buildInfo
	if err := s.getJSON(ctx, "/info.json", &info); err != nil {
		return nil, err
	}

	var globals moduleOffsets
	if err := s.getJSON(ctx, "/offsets.json", &globals); err != nil {
		return nil, err
	}
	var schema schemaDump
	if err := s.getJSON(ctx, "/client_dll.json", &schema); err != nil {
		return nil, err
	}
	var buttons moduleOffsets
	if err := s.getJSON(ctx, "/buttons.json", &buttons); err != nil {
		return nil, err
	}

	client, ok := globals["client.dll"]
	if !ok {
		return nil, fmt.Errorf("offsets.json has no client.dll section")
	}

	var entries []Entry
	for name, kind := range globalNames {
		off, ok := client[name]
		if !ok {
			return nil, fmt.Errorf("offsets.json missing %s", name)
		}
		entries = append(entries, Entry{Name: name, Offset: uintptr(off), Kind: kind})
	}

	if jump, ok := buttons["client.dll"]["jump"]; ok {
		entries = append(entries, Entry{Name: DwForceJump, Offset: uintptr(jump), Kind: KindUint32})
	} else {
		return nil, fmt.Errorf("buttons.json missing jump")
	}

	fields := flattenFields(schema)
	for name, kind := range fieldNames {
		off, ok := fields[name]
		if !ok {
			return nil, fmt.Errorf("client_dll.json missing field %s", name)
		}
		entries = append(entries, Entry{Name: name, Offset: uintptr(off), Kind: kind})
	}

	if modelState, ok := fields["m_modelState"]; ok {
		entries = append(entries, Entry{Name: MBoneArray, Offset: uintptr(modelState + boneArrayFromModelState), Kind: KindPointer})
	} else {
		return nil, fmt.Errorf("client_dll.json missing field m_modelState")
	}

	return NewSet(info.BuildNumber.String(), entries), nil
}

func flattenFields(schema schemaDump) map[string]uint64 {
	out := make(map[string]uint64)
	for _, module := range schema {
		for _, class := range module.Classes {
			for name, off := range class.Fields {
				if _, seen := out[name]; !seen {
					out[name] = off
				}
			}
		}
	}
	return out
}

func (s *HTTPSource) getJSON(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: status %d", path, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("fetch %s: %w", path, err)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
