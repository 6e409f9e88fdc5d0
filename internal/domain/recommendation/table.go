package recommendation

import "github.com/garyjia/crop-guard/internal/domain/entity"

// Unknown is returned when a diagnosis matches no known condition
var Unknown = entity.Recommendation{
	Description: "This condition could not be matched to a known disease or pest.",
	Symptoms:    []string{},
	Treatment:   "Consult a local agricultural extension officer or plant health expert before treating.",
	Prevention:  "Isolate affected plants and keep monitoring for spreading symptoms.",
	Message:     "We couldn't identify this condition with certainty. Please consult an expert and retake the photo in good light.",
}

// conditions is keyed by normalised condition name
var conditions = map[string]entity.Recommendation{
	"healthy": {
		Description: "Your crop shows no signs of disease or pest infestation.",
		Symptoms:    []string{},
		Treatment:   "No treatment needed.",
		Prevention:  "Keep monitoring and maintain good farming practices.",
		Message:     "Great job! Your crop is looking healthy. Keep up the good work and keep checking regularly.",
	},
	"fall armyworm": {
		Description: "A destructive caterpillar that feeds on maize leaves and cobs.",
		Symptoms:    []string{"Holes in leaves", "Frass (insect poop) near whorls", "Stunted growth"},
		Treatment:   "Apply pesticides such as Spinosad or Bacillus thuringiensis. Early detection helps.",
		Prevention:  "Plant early, use pest-resistant varieties, rotate crops.",
		Message:     "Your maize might be under attack by fall armyworms. It's best to spray a safe pesticide like Spinosad and monitor regularly. Early action saves your yield!",
	},
	"grasshoper": grasshopper,
	"grasshopper": grasshopper,
	"leaf beetle": {
		Description: "Beetles that skeletonize maize leaves, reducing growth.",
		Symptoms:    []string{"Holes and transparent patches on leaves"},
		Treatment:   "Use insecticidal soap or approved beetle pesticides.",
		Prevention:  "Practice crop rotation and destroy old crop debris.",
		Message:     "Leaf beetles may be feeding on your maize. Spray with safe insecticides and clean up leftover plant waste after harvest.",
	},
	"leaf blight": {
		Description: "Fungal disease that causes dead streaks and lesions on leaves.",
		Symptoms:    []string{"Long, greyish or brown lesions", "Yellowing and dying leaves"},
		Treatment:   "Apply fungicides like Mancozeb or chlorothalonil. Ensure good air circulation.",
		Prevention:  "Avoid overhead watering; plant in well-spaced rows.",
		Message:     "Leaf blight detected. Spray fungicide and avoid wetting leaves during irrigation.",
	},
	"early blight": {
		Description: "Fungal disease (Alternaria) that starts on older, lower leaves.",
		Symptoms:    []string{"Brown spots with concentric rings", "Yellowing around lesions", "Lower leaves dropping"},
		Treatment:   "Remove affected leaves and apply a copper-based or chlorothalonil fungicide.",
		Prevention:  "Rotate crops, mulch the soil and water at the base of plants.",
		Message:     "Early blight spotted. Pick off the affected lower leaves and spray fungicide before it climbs the plant.",
	},
	"late blight": {
		Description: "Fast-spreading water mould that thrives in cool, wet weather.",
		Symptoms:    []string{"Dark, water-soaked patches", "White mould under leaves", "Rotting fruit"},
		Treatment:   "Destroy infected plants and apply a protective fungicide to the rest.",
		Prevention:  "Use resistant varieties and keep foliage dry.",
		Message:     "Late blight can wipe out a field within days. Remove infected plants now and protect the healthy ones with fungicide.",
	},
	"leaf spot": {
		Description: "Spots caused by fungus or bacteria, reducing photosynthesis.",
		Symptoms:    []string{"Brown or black spots with yellow halos"},
		Treatment:   "Spray with copper-based fungicide.",
		Prevention:  "Use disease-free seeds and rotate maize with legumes.",
		Message:     "Spots on your leaves suggest leaf spot. A copper fungicide should do the trick. Rotate crops to prevent re-infection.",
	},
	"streak virus": {
		Description: "A viral disease transmitted by leafhoppers.",
		Symptoms:    []string{"Yellow streaks", "Stunted plants", "Chlorotic leaves"},
		Treatment:   "No cure, but remove and burn infected plants.",
		Prevention:  "Control leafhoppers; use virus-free seeds.",
		Message:     "Your maize may have streak virus. Uproot and burn infected plants quickly, and spray to control leafhoppers.",
	},
	"bacterial blight": {
		Description: "A bacterial infection causing leaf wilting and stem dieback.",
		Symptoms:    []string{"Angular leaf spots", "Wilted leaves", "Stem rot"},
		Treatment:   "No direct cure, but pruning infected areas helps.",
		Prevention:  "Use disease-free cuttings; plant early.",
		Message:     "Cassava bacterial blight found. Cut off infected stems and plant clean cuttings next time.",
	},
	"brown spot": {
		Description: "Fungal disease causing brown lesions on leaves.",
		Symptoms:    []string{"Brown dry patches", "Defoliation in severe cases"},
		Treatment:   "Apply Mancozeb or other fungicides.",
		Prevention:  "Avoid overhead watering and weed regularly.",
		Message:     "Your cassava shows brown spot symptoms. Apply fungicide and keep the field well-weeded.",
	},
	"green mite": {
		Description: "Microscopic pests that feed on cassava leaves.",
		Symptoms:    []string{"Leaf curling", "Yellowing", "Stunted growth"},
		Treatment:   "Use neem oil or biological controls like predatory mites.",
		Prevention:  "Use tolerant varieties and natural predators.",
		Message:     "Green mites might be on your cassava. Spray neem oil and look into mite-resistant varieties.",
	},
	"mosaic": {
		Description: "A viral disease causing leaf distortion.",
		Symptoms:    []string{"Mottled leaves", "Distorted growth"},
		Treatment:   "Remove and destroy infected plants.",
		Prevention:  "Use resistant varieties and clean planting materials.",
		Message:     "Cassava mosaic virus detected. Uproot affected plants and use resistant varieties for next season.",
	},
	"anthracnose": {
		Description: "Fungal disease that attacks young shoots and fruits.",
		Symptoms:    []string{"Black lesions", "Fruit drop", "Leaf spots"},
		Treatment:   "Use copper-based fungicides like Copper Oxychloride.",
		Prevention:  "Prune to increase airflow and avoid overhead irrigation.",
		Message:     "Your cashew trees may have anthracnose. Apply copper fungicide and prune crowded branches.",
	},
	"gumosis": {
		Description: "A physiological disorder where gum oozes from the bark.",
		Symptoms:    []string{"Gum exudation", "Cracked bark", "Yellowing leaves"},
		Treatment:   "Apply Bordeaux paste to the wounds.",
		Prevention:  "Avoid waterlogging and mechanical injuries.",
		Message:     "Gumosis spotted. Apply Bordeaux paste and ensure the soil drains well.",
	},
	"leaf miner": {
		Description: "Insects that burrow inside cashew leaves.",
		Symptoms:    []string{"Winding trails on leaves", "Leaf curling"},
		Treatment:   "Spray with Imidacloprid or neem-based pesticide.",
		Prevention:  "Remove affected leaves; plant resistant varieties.",
		Message:     "Leaf miners are feeding inside your cashew leaves. Spray with neem oil and remove damaged leaves.",
	},
	"red rust": {
		Description: "Algae-caused disease that forms reddish growth on leaves.",
		Symptoms:    []string{"Reddish-orange spots", "Reduced vigor"},
		Treatment:   "Spray copper fungicide or lime-sulfur solution.",
		Prevention:  "Avoid overcrowding and increase air circulation.",
		Message:     "Red rust detected on your cashew. Treat with copper fungicide and give your plants some breathing room.",
	},
	"leaf curl": {
		Description: "Viral disease spread by whiteflies.",
		Symptoms:    []string{"Upward curling leaves", "Stunted growth"},
		Treatment:   "Remove infected plants and control whiteflies.",
		Prevention:  "Use yellow sticky traps and virus-resistant varieties.",
		Message:     "Tomato leaf curl detected. Remove infected plants and trap whiteflies with yellow sticky traps.",
	},
	"septoria leaf spot": {
		Description: "Fungal disease causing circular spots on tomato leaves.",
		Symptoms:    []string{"Small brown circular spots", "Yellowing lower leaves"},
		Treatment:   "Use Mancozeb or chlorothalonil spray.",
		Prevention:  "Avoid wetting leaves; improve air circulation.",
		Message:     "Spots on tomato leaves? That's septoria. Spray fungicide and ensure your plants aren't too crowded.",
	},
	"verticulium wilt": {
		Description: "Soil-borne fungus that blocks water flow in tomatoes.",
		Symptoms:    []string{"Wilting leaves", "Yellowing", "Reduced fruit size"},
		Treatment:   "Remove affected plants and solarize soil.",
		Prevention:  "Rotate crops and avoid planting tomatoes in the same spot every year.",
		Message:     "Tomato wilt detected. Uproot infected plants and rotate your crops next season.",
	},
}

var grasshopper = entity.Recommendation{
	Description: "Insects that chew on maize leaves, reducing photosynthesis.",
	Symptoms:    []string{"Jagged leaf edges", "Visible insects on leaves"},
	Treatment:   "Use neem-based sprays or mechanical control.",
	Prevention:  "Encourage natural predators like birds; avoid overuse of fertilizers.",
	Message:     "Looks like grasshoppers are chewing on your maize. Spray neem oil and try attracting birds to your farm, they're great helpers!",
}

// cropConditions holds advice that differs from the generic entry for a given crop
var cropConditions = map[entity.CropType]map[string]entity.Recommendation{
	entity.CropMaize: {
		"healthy": {
			Description: "Your crop shows no signs of disease or pest infestation.",
			Symptoms:    []string{},
			Treatment:   "No treatment needed.",
			Prevention:  "Keep monitoring and maintain good farming practices.",
			Message:     "Great job! Your maize is looking healthy. Keep up the good work and keep checking regularly.",
		},
		"leaf blight": {
			Description: "Fungal disease that causes dead streaks on leaves.",
			Symptoms:    []string{"Long, greyish lesions", "Yellowing and dying leaves"},
			Treatment:   "Apply fungicides like Mancozeb. Ensure good air circulation.",
			Prevention:  "Avoid overhead watering; plant in well-spaced rows.",
			Message:     "Maize leaf blight detected. Spray fungicide and avoid wetting leaves during irrigation.",
		},
	},
	entity.CropCassava: {
		"healthy": {
			Description: "Your cassava is in excellent condition.",
			Symptoms:    []string{},
			Treatment:   "None required.",
			Prevention:  "Keep monitoring and weed regularly.",
			Message:     "Well done! Your cassava looks healthy. Just maintain regular care and check for early signs of trouble.",
		},
	},
	entity.CropCashew: {
		"healthy": {
			Description: "No signs of disease or pest issues on your cashew.",
			Symptoms:    []string{},
			Treatment:   "None needed.",
			Prevention:  "Maintain clean pruning and proper watering.",
			Message:     "Your cashew looks healthy! Keep following good care practices and you'll be rewarded with a good harvest.",
		},
	},
	entity.CropTomato: {
		"healthy": {
			Description: "Tomatoes are growing well without any visible issues.",
			Symptoms:    []string{},
			Treatment:   "None needed.",
			Prevention:  "Maintain good practices like mulching and spacing.",
			Message:     "Your tomatoes are doing great! Keep watering regularly and monitor for any signs of pests or disease.",
		},
		"leaf blight": {
			Description: "Fungal disease causing rapid leaf death.",
			Symptoms:    []string{"Brown lesions", "Leaf drop", "Stem cankers"},
			Treatment:   "Apply chlorothalonil or copper-based fungicide.",
			Prevention:  "Avoid overhead watering and plant spacing.",
			Message:     "Leaf blight may be affecting your tomatoes. Spray fungicide and avoid splashing water on leaves.",
		},
	},
}
