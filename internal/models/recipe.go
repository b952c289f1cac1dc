package models

import (
	"time"

	"gorm.io/gorm"
)

// Difficulty levels accepted for recipes. Stored as free text so new levels
// don't need a migration.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Recipe is the root of the recipe aggregate and the source of truth for
// everything the search index holds.
type Recipe struct {
	ID                 string  `gorm:"primaryKey;type:uuid" json:"id"`
	Title              string  `gorm:"type:text;not null" json:"title"`
	Description        *string `gorm:"type:text" json:"description"`
	AuthorID           string  `gorm:"type:uuid;not null;index" json:"author_id"`
	Author             *User   `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Cuisine            *string `gorm:"type:varchar(64);index" json:"cuisine"`
	Difficulty         *string `gorm:"type:varchar(32)" json:"difficulty"`
	CookingTimeMinutes *int    `json:"cooking_time_minutes"`

	Ingredients  []RecipeIngredient `gorm:"foreignKey:RecipeID" json:"ingredients"`
	Instructions []Instruction      `gorm:"foreignKey:RecipeID" json:"instructions"`
	Ratings      []Rating           `gorm:"foreignKey:RecipeID" json:"ratings"`
	Comments     []Comment          `gorm:"foreignKey:RecipeID" json:"comments"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecipeIngredient is one entry of a recipe's ordered ingredient list
type RecipeIngredient struct {
	ID       string  `gorm:"primaryKey;type:uuid" json:"id"`
	RecipeID string  `gorm:"type:uuid;not null;index" json:"recipe_id"`
	Position int     `gorm:"not null;default:0" json:"position"`
	Name     string  `gorm:"type:text;not null" json:"name"`
	Quantity *string `gorm:"type:text" json:"quantity"`
}

// Instruction is a single numbered step; step numbers are unique per recipe
type Instruction struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	RecipeID   string `gorm:"type:uuid;not null;uniqueIndex:idx_instructions_recipe_step" json:"recipe_id"`
	StepNumber int    `gorm:"not null;uniqueIndex:idx_instructions_recipe_step" json:"step_number"`
	Text       string `gorm:"type:text;not null" json:"text"`
}

// Rating is a user's 1-5 score for a recipe. A user holds at most one
// rating per recipe; re-rating replaces the score.
type Rating struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string    `gorm:"type:uuid;not null;uniqueIndex:idx_ratings_user_recipe" json:"user_id"`
	RecipeID  string    `gorm:"type:uuid;not null;uniqueIndex:idx_ratings_user_recipe;index" json:"recipe_id"`
	Score     int       `gorm:"not null" json:"score"`
	Review    *string   `gorm:"type:text" json:"review"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Comment is an append-only remark on a recipe
type Comment struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string    `gorm:"type:uuid;not null;index" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	RecipeID  string    `gorm:"type:uuid;not null;index" json:"recipe_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate hooks for GORM
func (r *Recipe) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = generateUUID()
	}
	return nil
}

func (i *RecipeIngredient) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = generateUUID()
	}
	return nil
}

func (i *Instruction) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = generateUUID()
	}
	return nil
}

func (r *Rating) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = generateUUID()
	}
	return nil
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = generateUUID()
	}
	return nil
}
