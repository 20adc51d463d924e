package api

import (
	"net/http"
	"strconv"

	"abegfix/internal/db"
	"abegfix/internal/models"
)

// publicUser is the directory view of an account. Contact details stay
// hidden unless the viewer owns the profile or is an admin.
type publicUser struct {
	ID             string                 `json:"id"`
	Name           string                 `json:"name"`
	AvatarURL      string                 `json:"avatarUrl"`
	Role           models.Role            `json:"role"`
	Rating         float64                `json:"rating"`
	ArtisanProfile *models.ArtisanProfile `json:"artisanProfile,omitempty"`
}

func toPublicUser(user *models.User) publicUser {
	return publicUser{
		ID:             user.ID.Hex(),
		Name:           user.Name,
		AvatarURL:      user.AvatarURL,
		Role:           user.Role,
		Rating:         user.Rating,
		ArtisanProfile: user.ArtisanProfile,
	}
}

func toPublicUsers(users []models.User) []publicUser {
	out := make([]publicUser, 0, len(users))
	for i := range users {
		out = append(out, toPublicUser(&users[i]))
	}
	return out
}

type paginatedResponse struct {
	Data       any   `json:"data"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	TotalPages int64 `json:"totalPages"`
}

func paginated(data any, total int64, page db.Page) paginatedResponse {
	return paginatedResponse{
		Data:       data,
		Total:      total,
		Page:       page.Number,
		TotalPages: page.TotalPages(total),
	}
}

// pageFromRequest reads page and pageSize query parameters with clamping.
func pageFromRequest(r *http.Request) db.Page {
	number, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	return db.NewPage(number, size)
}
