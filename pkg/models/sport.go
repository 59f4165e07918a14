package models

// ExerciseType describes one analyzable movement within a sport.
type ExerciseType struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Sport describes one supported sport and the movements it can analyze.
type Sport struct {
	ID                   string         `json:"id"`
	Name                 string         `json:"name"`
	Description          string         `json:"description"`
	RequiresExerciseType bool           `json:"requires_exercise_type"`
	ExerciseTypes        []ExerciseType `json:"exercise_types,omitempty"`
}

// sports is the movement registry. Order is the presentation order returned by
// the sports endpoint.
var sports = []Sport{
	{
		ID:                   "basketball",
		Name:                 "Basketball",
		Description:          "Analyze shooting form and mechanics",
		RequiresExerciseType: false,
		ExerciseTypes: []ExerciseType{
			{ID: "shot_off_dribble", Name: "Shot off the Dribble", Description: "Jump shot taken off the dribble"},
			{ID: "catch_and_shoot", Name: "Catch and Shoot", Description: "Jump shot taken directly off a pass"},
			{ID: "free_throw", Name: "Free Throw", Description: "Set shot from the free-throw line"},
		},
	},
	{
		ID:                   "golf",
		Name:                 "Golf",
		Description:          "Analyze golf swing mechanics and posture",
		RequiresExerciseType: true,
		ExerciseTypes: []ExerciseType{
			{ID: "driver_swing", Name: "Driver Swing", Description: "Full swing with a driver off the tee"},
			{ID: "iron_swing", Name: "Iron Swing", Description: "Full swing with an iron"},
			{ID: "chip_shot", Name: "Chip Shot", Description: "Short chip around the green"},
			{ID: "putting_stroke", Name: "Putting Stroke", Description: "Putting stroke on the green"},
		},
	},
	{
		ID:                   "weightlifting",
		Name:                 "Weightlifting",
		Description:          "Analyze form for various lifts",
		RequiresExerciseType: true,
		ExerciseTypes: []ExerciseType{
			{ID: "barbell_squat", Name: "Barbell Squat", Description: "Back squat with a barbell"},
			{ID: "front_squat", Name: "Front Squat", Description: "Squat with the bar racked on the front delts"},
			{ID: "deadlift", Name: "Deadlift", Description: "Conventional deadlift from the floor"},
			{ID: "romanian_deadlift", Name: "Romanian Deadlift", Description: "Hip hinge with minimal knee bend"},
			{ID: "bench_press", Name: "Bench Press", Description: "Barbell press from a flat bench"},
			{ID: "barbell_row", Name: "Barbell Row", Description: "Bent-over row with a barbell"},
			{ID: "dumbbell_row", Name: "Dumbbell Row", Description: "Single-arm row with a dumbbell"},
			{ID: "lat_pulldown", Name: "Lat Pulldown", Description: "Cable pulldown to the upper chest"},
			{ID: "rear_delt_flies", Name: "Rear Delt Flies", Description: "Reverse fly targeting the rear delts"},
		},
	},
	{ID: "baseball", Name: "Baseball", Description: "Analyze baseball form and mechanics"},
	{ID: "soccer", Name: "Soccer", Description: "Analyze soccer technique and form"},
	{ID: "track_field", Name: "Track and Field", Description: "Analyze running form and sprint mechanics"},
	{ID: "volleyball", Name: "Volleyball", Description: "Analyze volleyball technique and form"},
	{ID: "lacrosse", Name: "Lacrosse", Description: "Analyze lacrosse shooting and passing form"},
}

// exerciseAliases maps legacy and shorthand movement names to registry IDs.
var exerciseAliases = map[string]string{
	"squat":      "barbell_squat",
	"back_squat": "barbell_squat",
	"bench":      "bench_press",
	"row":        "barbell_row",
	"db_row":     "dumbbell_row",
	"pulldown":   "lat_pulldown",
	"rdl":        "romanian_deadlift",
	"driver":     "driver_swing",
	"fairway":    "iron_swing",
	"chip":       "chip_shot",
	"putt":       "putting_stroke",
	"jumpshot":   "shot_off_dribble",
}

// Sports returns all supported sports in presentation order.
func Sports() []Sport {
	out := make([]Sport, len(sports))
	copy(out, sports)
	return out
}

// SportByID looks up a sport by its identifier.
func SportByID(id string) (Sport, bool) {
	for _, s := range sports {
		if s.ID == id {
			return s, true
		}
	}
	return Sport{}, false
}

// NormalizeExercise resolves aliases and validates exerciseType against the
// sport's registry. Basketball defaults to shot_off_dribble when no movement is
// given; sports without registered movements accept an empty exercise type.
// The second return is false when the movement is unknown for the sport.
func NormalizeExercise(sport Sport, exerciseType string) (string, bool) {
	if canonical, ok := exerciseAliases[exerciseType]; ok {
		exerciseType = canonical
	}

	if exerciseType == "" {
		if sport.ID == "basketball" {
			return "shot_off_dribble", true
		}
		return "", !sport.RequiresExerciseType
	}

	for _, et := range sport.ExerciseTypes {
		if et.ID == exerciseType {
			return exerciseType, true
		}
	}
	return "", false
}
