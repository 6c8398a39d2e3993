package classes

import "github.com/cfoust/forge/pkg/geom"

var (
	white  = geom.NewVec3(1, 1, 1)
	red    = geom.NewVec3(1, 0, 0)
	purple = geom.NewVec3(0.25, 0.177, 1)
)

// Defaults lists the object classes known ahead of time. Nodes used only by
// AI and mission scripting are hidden unless asked for.
var Defaults = []ObjectClass{
	{Name: "rfg_mover", Hash: 2898847573, Color: geom.NewVec3(0.923, 0.648, 0), Show: true},
	{Name: "cover_node", Hash: 3322951465, Color: red},
	{Name: "navpoint", Hash: 4055578105, Color: geom.NewVec3(1, 0.968, 0)},
	{Name: "general_mover", Hash: 1435016567, Color: geom.NewVec3(0.738, 0, 0), Show: true},
	{Name: "player_start", Hash: 1794022917, Color: white, Show: true},
	{Name: "multi_object_marker", Hash: 1332551546, Color: white, Show: true},
	{Name: "weapon", Hash: 2760055731, Color: white, Show: true},
	{Name: "object_action_node", Hash: 2017715543, Color: purple},
	{Name: "object_squad_spawn_node", Hash: 311451949, Color: purple},
	{Name: "object_npc_spawn_node", Hash: 2305434277, Color: purple},
	{Name: "object_guard_node", Hash: 968050919, Color: purple},
	{Name: "object_path_road", Hash: 3007680500, Color: purple},
	{Name: "shape_cutter", Hash: 753322256, Color: white, Show: true},
	{Name: "item", Hash: 27482413, Color: white, Show: true},
	{Name: "object_vehicle_spawn_node", Hash: 3057427650, Color: purple},
	{Name: "ladder", Hash: 1620465961, Color: white, Show: true},
	{Name: "constraint", Hash: 1798059225, Color: geom.NewVec3(0.958, 0, 1), Show: true},
	{Name: "object_effect", Hash: 2663183315, Color: white, Show: true},
	{Name: "trigger_region", Hash: 2367895008, Color: white, Show: true},
	{Name: "object_bftp_node", Hash: 3005715123, Color: white},
	{Name: "object_bounding_box", Hash: 2575178582, Color: white, Show: true},
	{Name: "object_turret_spawn_node", Hash: 96035668, Color: purple},
	{Name: "obj_zone", Hash: 3740226015, Color: geom.NewVec3(0.935, 0, 1), Show: true},
	{Name: "object_patrol", Hash: 3656745166, Color: white, Show: true},
	{Name: "object_dummy", Hash: 2671133140, Color: white, Show: true},
	{Name: "object_raid_node", Hash: 3006762854, Color: purple},
	{Name: "object_delivery_node", Hash: 1315235117, Color: purple},
	{Name: "marauder_ambush_region", Hash: 1783727054, Color: white, Show: true},
	{Name: Unknown, Hash: 0, Color: white, Show: true},
	{Name: "object_activity_spawn", Hash: 2219327965, Color: white, Show: true},
	{Name: "object_mission_start_node", Hash: 1536827764, Color: purple},
	{Name: "object_demolitions_master_node", Hash: 3497250449, Color: purple},
	{Name: "object_restricted_area", Hash: 3157693713, Color: red, Show: true, ShowLabel: true},
	{Name: "effect_streaming_node", Hash: 1742767984, Color: purple, ShowLabel: true},
	{Name: "object_house_arrest_node", Hash: 227226529, Color: purple},
	{Name: "object_area_defense_node", Hash: 2107155776, Color: purple},
	{Name: "object_safehouse", Hash: 3291687510, Color: geom.NewVec3(0, 0.905, 1), Show: true},
	{Name: "object_convoy_end_point", Hash: 1466427822, Color: white, Show: true},
	{Name: "object_courier_end_point", Hash: 3654824104, Color: white, Show: true},
	{Name: "object_riding_shotgun_node", Hash: 1227520137, Color: purple},
	{Name: "object_upgrade_node", Hash: 2502352132, Color: purple},
	{Name: "object_ambient_behavior_region", Hash: 2407660945, Color: white, Show: true},
	{Name: "object_roadblock_node", Hash: 2100364527, Color: purple, ShowLabel: true},
	{Name: "object_spawn_region", Hash: 1854373986, Color: white, Show: true, ShowLabel: true},
	{Name: "obj_light", Hash: 2915886275, Color: white, Show: true, ShowLabel: true},
}
