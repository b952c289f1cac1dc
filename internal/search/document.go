package search

import (
	"sort"
	"strings"
	"time"

	"github.com/zfogg/recipebook/internal/models"
)

// Document is the denormalized recipe representation held by the index.
// It is rebuilt wholesale from the aggregate on every sync.
type Document struct {
	ID                 string          `json:"id"`
	Title              string          `json:"title"`
	Description        string          `json:"description"`
	AuthorID           string          `json:"author_id"`
	AuthorName         *string         `json:"author_name"`
	Ingredients        []IngredientDoc `json:"ingredients"`
	Instructions       string          `json:"instructions"`
	AvgRating          float64         `json:"avg_rating"`
	CommentCount       int             `json:"comment_count"`
	Cuisine            *string         `json:"cuisine"`
	Difficulty         *string         `json:"difficulty"`
	CookingTimeMinutes *int            `json:"cooking_time_minutes"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// IngredientDoc holds the lowercase exact-match key next to the original
// text so filters and autocomplete stay case-insensitive while full-text
// matching keeps the author's spelling.
type IngredientDoc struct {
	Name     string  `json:"name"`
	NameText string  `json:"name_text"`
	Quantity *string `json:"quantity"`
}

// ToDocument maps a recipe aggregate to its search document. It never fails;
// missing optional parts map to empty values.
func ToDocument(recipe models.Recipe) Document {
	doc := Document{
		ID:                 recipe.ID,
		Title:              recipe.Title,
		AuthorID:           recipe.AuthorID,
		Ingredients:        make([]IngredientDoc, 0, len(recipe.Ingredients)),
		AvgRating:          AverageRating(recipe.Ratings),
		CommentCount:       len(recipe.Comments),
		Cuisine:            recipe.Cuisine,
		Difficulty:         recipe.Difficulty,
		CookingTimeMinutes: recipe.CookingTimeMinutes,
		CreatedAt:          recipe.CreatedAt,
		UpdatedAt:          recipe.UpdatedAt,
	}

	if recipe.Description != nil {
		doc.Description = *recipe.Description
	}
	if recipe.Author != nil {
		doc.AuthorName = recipe.Author.Name
	}

	ingredients := make([]models.RecipeIngredient, len(recipe.Ingredients))
	copy(ingredients, recipe.Ingredients)
	sort.SliceStable(ingredients, func(i, j int) bool {
		return ingredients[i].Position < ingredients[j].Position
	})
	for _, ing := range ingredients {
		doc.Ingredients = append(doc.Ingredients, IngredientDoc{
			Name:     strings.ToLower(ing.Name),
			NameText: ing.Name,
			Quantity: ing.Quantity,
		})
	}

	instructions := make([]models.Instruction, len(recipe.Instructions))
	copy(instructions, recipe.Instructions)
	sort.SliceStable(instructions, func(i, j int) bool {
		return instructions[i].StepNumber < instructions[j].StepNumber
	})
	steps := make([]string, len(instructions))
	for i, ins := range instructions {
		steps[i] = ins.Text
	}
	doc.Instructions = strings.Join(steps, "\n")

	return doc
}

// AverageRating is the full-precision mean score, or 0 with no ratings
func AverageRating(ratings []models.Rating) float64 {
	if len(ratings) == 0 {
		return 0
	}
	total := 0
	for _, r := range ratings {
		total += r.Score
	}
	return float64(total) / float64(len(ratings))
}

// recipeMapping is the index definition for recipe documents
func recipeMapping() map[string]interface{} {
	englishText := map[string]interface{}{
		"type":     "text",
		"analyzer": "english",
	}

	return map[string]interface{}{
		"mappings": map[string]interface{}{
			"_meta": map[string]interface{}{
				"version": IndexVersion,
			},
			"properties": map[string]interface{}{
				"id":           map[string]interface{}{"type": "keyword"},
				"title":        englishText,
				"description":  englishText,
				"instructions": englishText,
				"author_id":    map[string]interface{}{"type": "keyword"},
				"author_name":  map[string]interface{}{"type": "text"},
				"ingredients": map[string]interface{}{
					"type": "nested",
					"properties": map[string]interface{}{
						"name":      map[string]interface{}{"type": "keyword"},
						"name_text": englishText,
						"quantity":  map[string]interface{}{"type": "text"},
					},
				},
				"avg_rating":           map[string]interface{}{"type": "double"},
				"comment_count":        map[string]interface{}{"type": "integer"},
				"cuisine":              map[string]interface{}{"type": "keyword"},
				"difficulty":           map[string]interface{}{"type": "keyword"},
				"cooking_time_minutes": map[string]interface{}{"type": "integer"},
				"created_at":           map[string]interface{}{"type": "date"},
				"updated_at":           map[string]interface{}{"type": "date"},
			},
		},
	}
}

// analyticsMapping is the index definition for search events
func analyticsMapping() map[string]interface{} {
	return map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"user_id":     map[string]interface{}{"type": "keyword"},
				"query":       map[string]interface{}{"type": "text"},
				"ingredients": map[string]interface{}{"type": "keyword"},
				"timestamp":   map[string]interface{}{"type": "date"},
			},
		},
	}
}
