package repository

func (s *RecipeRepositoryTestSuite) TestUserRepository_RenameAndClear() {
	users := NewUserRepository(s.db)

	s.Require().NoError(users.UpdateUserName(s.ctx, s.author.ID, strPtr("Chef Bob")))
	user, err := users.GetUser(s.ctx, s.author.ID)
	s.Require().NoError(err)
	s.Equal("Chef Bob", *user.Name)

	s.Require().NoError(users.UpdateUserName(s.ctx, s.author.ID, nil))
	user, err = users.GetUser(s.ctx, s.author.ID)
	s.Require().NoError(err)
	s.Nil(user.Name)
}

func (s *RecipeRepositoryTestSuite) TestUserRepository_NotFound() {
	users := NewUserRepository(s.db)

	_, err := users.GetUser(s.ctx, "missing")
	s.ErrorIs(err, ErrUserNotFound)
	s.ErrorIs(users.UpdateUserName(s.ctx, "missing", strPtr("x")), ErrUserNotFound)
	s.ErrorIs(users.UpdateUserName(s.ctx, "", strPtr("x")), ErrInvalidInput)
}

func (s *RecipeRepositoryTestSuite) TestUserRepository_AuthoredRecipeIDs() {
	users := NewUserRepository(s.db)
	first := s.createRecipe("Soup")
	second := s.createRecipe("Stew")

	ids, err := users.AuthoredRecipeIDs(s.ctx, s.author.ID)
	s.Require().NoError(err)
	s.ElementsMatch([]string{first.ID, second.ID}, ids)

	ids, err = users.AuthoredRecipeIDs(s.ctx, "nobody")
	s.Require().NoError(err)
	s.Empty(ids)
}
