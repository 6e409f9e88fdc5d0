// Package crop maps crops to the inference models that classify them.
package crop

import (
	"sort"

	"github.com/garyjia/crop-guard/internal/domain/entity"
)

// Model identifiers understood by the prediction endpoint
const (
	ModelMaize   = "xception_maize"
	ModelCassava = "xception_cassava"
	ModelCashew  = "xception_cashew"
	ModelTomato  = "xception_tomato"
)

// DefaultModel is used when the crop type is not recognised
const DefaultModel = ModelMaize

var cropToModel = map[entity.CropType]string{
	entity.CropMaize:   ModelMaize,
	entity.CropCassava: ModelCassava,
	entity.CropCashew:  ModelCashew,
	entity.CropTomato:  ModelTomato,
}

// Class labels in the order each model emits them
var modelLabels = map[string][]string{
	ModelMaize:   {"fall armyworm", "grasshoper", "healthy", "leaf beetle", "leaf blight", "leaf spot", "streak virus"},
	ModelCassava: {"bacterial blight", "brown spot", "green mite", "healthy", "mosaic"},
	ModelCashew:  {"anthracnose", "gumosis", "healthy", "leaf miner", "red rust"},
	ModelTomato:  {"healthy", "leaf blight", "leaf curl", "septoria leaf spot", "verticulium wilt"},
}

// ResolveModel returns the model for a crop, falling back to DefaultModel
func ResolveModel(c entity.CropType) string {
	if m, ok := cropToModel[c]; ok {
		return m
	}
	return DefaultModel
}

// Labels returns a copy of the class labels a model can emit
func Labels(model string) []string {
	labels := modelLabels[model]
	out := make([]string, len(labels))
	copy(out, labels)
	return out
}

// Models lists every known model identifier, sorted
func Models() []string {
	models := make([]string, 0, len(modelLabels))
	for m := range modelLabels {
		models = append(models, m)
	}
	sort.Strings(models)
	return models
}

// CropForModel is the inverse of ResolveModel
func CropForModel(model string) (entity.CropType, bool) {
	for c, m := range cropToModel {
		if m == model {
			return c, true
		}
	}
	return "", false
}
