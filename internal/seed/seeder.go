package seed

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/zfogg/recipebook/internal/logger"
	"github.com/zfogg/recipebook/internal/models"
	"github.com/zfogg/recipebook/internal/recipes"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	cuisines     = []string{"italian", "mexican", "japanese", "indian", "french", "thai", "american", "greek"}
	difficulties = []string{models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard}
	pantry       = []string{"salt", "black pepper", "olive oil", "butter", "garlic", "onion", "flour", "egg", "milk", "sugar", "lemon", "rice", "tomato", "basil", "chicken", "cheese"}
	quantities   = []string{"1 cup", "2 tbsp", "1 tsp", "200 g", "a pinch", "2", "1/2 cup", "to taste"}
)

// Seeder writes development fixtures. Recipes, ratings and comments go
// through the recipe service so every one of them is indexed.
type Seeder struct {
	db      *gorm.DB
	recipes *recipes.Service
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB, recipeService *recipes.Service) *Seeder {
	// Seed returns an error only for invalid sources
	_ = gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{db: db, recipes: recipeService}
}

// SeedDev seeds the development database with realistic data
func (s *Seeder) SeedDev(ctx context.Context) error {
	logger.Log.Info("Creating users...")
	users, err := s.seedUsers(50)
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}

	logger.Log.Info("Creating recipes...")
	created, err := s.seedRecipes(ctx, users, 300)
	if err != nil {
		return fmt.Errorf("failed to seed recipes: %w", err)
	}

	logger.Log.Info("Creating ratings...")
	if err := s.seedRatings(ctx, users, created, 1000); err != nil {
		return fmt.Errorf("failed to seed ratings: %w", err)
	}

	logger.Log.Info("Creating comments...")
	if err := s.seedComments(ctx, users, created, 500); err != nil {
		return fmt.Errorf("failed to seed comments: %w", err)
	}

	return nil
}

// SeedTest seeds a small, fixed data set
func (s *Seeder) SeedTest(ctx context.Context) error {
	alice, err := s.ensureUser("alice@example.com", "Alice Baker")
	if err != nil {
		return err
	}
	bob, err := s.ensureUser("bob@example.com", "Bob Cook")
	if err != nil {
		return err
	}

	fixtures := []recipes.CreateInput{
		{
			Title:       "Pancakes",
			Description: strPtr("Fluffy weekend breakfast"),
			Cuisine:     strPtr("american"),
			Difficulty:  strPtr(models.DifficultyEasy),
			Ingredients: []recipes.IngredientInput{
				{Name: "Egg", Quantity: strPtr("2")},
				{Name: "Flour", Quantity: strPtr("1 cup")},
				{Name: "Milk", Quantity: strPtr("1 cup")},
			},
			Instructions: []recipes.InstructionInput{
				{Text: "Whisk everything into a smooth batter"},
				{Text: "Cook ladlefuls on a hot buttered pan"},
			},
			CookingTimeMinutes: intPtr(20),
		},
		{
			Title:       "Tomato Basil Soup",
			Cuisine:     strPtr("italian"),
			Difficulty:  strPtr(models.DifficultyMedium),
			Ingredients: []recipes.IngredientInput{{Name: "Tomato"}, {Name: "Basil"}, {Name: "Garlic"}},
			Instructions: []recipes.InstructionInput{
				{Text: "Roast the tomatoes and garlic"},
				{Text: "Blend with basil and season"},
			},
			CookingTimeMinutes: intPtr(45),
		},
	}

	for _, in := range fixtures {
		recipe, err := s.recipes.Create(ctx, alice.ID, in)
		if err != nil {
			return fmt.Errorf("failed to create %q: %w", in.Title, err)
		}
		if _, err := s.recipes.AddRating(ctx, bob.ID, recipe.ID, recipes.RatingInput{Score: 5}); err != nil {
			return fmt.Errorf("failed to rate %q: %w", in.Title, err)
		}
	}

	logger.Log.Info("Test data seeded", zap.Int("recipes", len(fixtures)))
	return nil
}

// Clean removes seeded rows. The search index is not touched; run the
// reindex command with --recreate afterwards.
func (s *Seeder) Clean() error {
	// Delete in reverse order of dependencies
	for _, table := range []string{"comments", "ratings", "instructions", "recipe_ingredients", "recipes", "search_events"} {
		if err := s.db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clean %s: %w", table, err)
		}
	}
	if err := s.db.Exec("DELETE FROM users WHERE email LIKE '%@example.com'").Error; err != nil {
		return fmt.Errorf("failed to clean users: %w", err)
	}
	return nil
}

func (s *Seeder) ensureUser(email, name string) (*models.User, error) {
	user := models.User{Email: email, Name: &name}
	if err := s.db.Where("email = ?", email).FirstOrCreate(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user %s: %w", email, err)
	}
	return &user, nil
}

func (s *Seeder) seedUsers(count int) ([]models.User, error) {
	users := make([]models.User, 0, count)
	for i := 0; i < count; i++ {
		// example.com addresses mark seed users for Clean
		email := fmt.Sprintf("%s.%d@example.com", strings.ToLower(gofakeit.Username()), i)
		user, err := s.ensureUser(email, gofakeit.Name())
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, nil
}

func (s *Seeder) seedRecipes(ctx context.Context, users []models.User, count int) ([]*models.Recipe, error) {
	created := make([]*models.Recipe, 0, count)
	for i := 0; i < count; i++ {
		author := users[rand.Intn(len(users))]

		recipe, err := s.recipes.Create(ctx, author.ID, fakeRecipe())
		if err != nil {
			return nil, err
		}
		created = append(created, recipe)

		if (i+1)%50 == 0 {
			logger.Log.Info("Seeded recipes", zap.Int("count", i+1))
		}
	}
	return created, nil
}

func (s *Seeder) seedRatings(ctx context.Context, users []models.User, created []*models.Recipe, count int) error {
	for i := 0; i < count; i++ {
		user := users[rand.Intn(len(users))]
		recipe := created[rand.Intn(len(created))]

		// Skew towards good scores
		score := 3 + rand.Intn(3)
		if rand.Intn(5) == 0 {
			score = 1 + rand.Intn(2)
		}

		var review *string
		if rand.Intn(3) == 0 {
			review = strPtr(gofakeit.HipsterSentence())
		}

		if _, err := s.recipes.AddRating(ctx, user.ID, recipe.ID, recipes.RatingInput{Score: score, Review: review}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) seedComments(ctx context.Context, users []models.User, created []*models.Recipe, count int) error {
	for i := 0; i < count; i++ {
		user := users[rand.Intn(len(users))]
		recipe := created[rand.Intn(len(created))]

		if _, err := s.recipes.AddComment(ctx, user.ID, recipe.ID, gofakeit.HipsterSentence()); err != nil {
			return err
		}
	}
	return nil
}

// fakeRecipe builds a plausible recipe from gofakeit's food generators and
// a shared pantry, so ingredient filters and autocomplete have overlap
func fakeRecipe() recipes.CreateInput {
	var title string
	switch rand.Intn(4) {
	case 0:
		title = gofakeit.Breakfast()
	case 1:
		title = gofakeit.Lunch()
	case 2:
		title = gofakeit.Dinner()
	default:
		title = gofakeit.Dessert()
	}

	ingredientCount := rand.Intn(6) + 3 // 3-8 ingredients
	seen := make(map[string]bool, ingredientCount)
	ingredients := make([]recipes.IngredientInput, 0, ingredientCount)
	for len(ingredients) < ingredientCount {
		var name string
		switch rand.Intn(3) {
		case 0:
			name = gofakeit.Fruit()
		case 1:
			name = gofakeit.Vegetable()
		default:
			name = pantry[rand.Intn(len(pantry))]
		}
		if seen[strings.ToLower(name)] {
			continue
		}
		seen[strings.ToLower(name)] = true
		ingredients = append(ingredients, recipes.IngredientInput{
			Name:     name,
			Quantity: strPtr(quantities[rand.Intn(len(quantities))]),
		})
	}

	stepCount := rand.Intn(4) + 2
	steps := make([]recipes.InstructionInput, stepCount)
	for i := range steps {
		steps[i] = recipes.InstructionInput{Text: gofakeit.HipsterSentence()}
	}

	return recipes.CreateInput{
		Title:              title,
		Description:        strPtr(gofakeit.HipsterSentence()),
		Cuisine:            strPtr(cuisines[rand.Intn(len(cuisines))]),
		Difficulty:         strPtr(difficulties[rand.Intn(len(difficulties))]),
		CookingTimeMinutes: intPtr(5 * (rand.Intn(24) + 1)),
		Ingredients:        ingredients,
		Instructions:       steps,
	}
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }
