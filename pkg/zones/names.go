package zones

import "fmt"

// HashName is the case-insensitive string hash the game uses for property
// names.
func HashName(name string) uint32 {
	var hash uint32
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		hash = uint32(c) - ((hash << 27) | (hash >> 5))
	}
	return hash
}

var knownProperties = []string{
	"op",
	"just_pos",
	"display_name",
	"terrain_file_name",
	"district",
	"district_flags",
	"zone_type",
	"chunk_name",
	"gameplay_props",
	"uid",
	"props",
	"respawn",
	"respawn_speed",
	"spawn_resources",
	"ambient_spawn",
	"mission_info",
	"flags",
	"name",
	"type",
	"bb",
	"points",
	"radius",
	"width",
	"height",
	"depth",
	"region_type",
	"region_kill_type",
	"trigger_flags",
	"enabled",
	"team",
	"building_type",
	"dest_checksum",
	"world_anchors",
	"dynamic_links",
	"nav_links",
	"navpoint_type",
	"outer_radius",
	"speed_limit",
	"obj_links",
	"item_type",
	"weapon_type",
	"light_flags",
	"color",
	"attenuation_start",
	"attenuation_end",
	"hotspot_size",
	"hotspot_falloff_size",
}

var propertyNames = func() map[uint32]string {
	names := make(map[uint32]string, len(knownProperties))
	for _, name := range knownProperties {
		names[HashName(name)] = name
	}
	return names
}()

// PropertyName returns the name registered for hash, or "unknown_<hash>".
func PropertyName(hash uint32) string {
	if name, ok := propertyNames[hash]; ok {
		return name
	}
	return fmt.Sprintf("unknown_%d", hash)
}
