package db

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"abegfix/internal/models"
)

func TestArtisanFilterQueryBase(t *testing.T) {
	query := ArtisanFilter{}.Query()

	if got := query["role"]; got != models.RoleArtisan {
		t.Fatalf("role = %v, want %v", got, models.RoleArtisan)
	}
	if got := query["isDeleted"]; got != false {
		t.Fatalf("isDeleted = %v, want false", got)
	}
	if len(query) != 2 {
		t.Fatalf("empty filter produced %d clauses, want 2", len(query))
	}
}

func TestArtisanFilterQueryEscapesRegexInput(t *testing.T) {
	query := ArtisanFilter{Skill: "a.c+"}.Query()

	clause, ok := query["artisanProfile.skills"].(bson.M)
	if !ok {
		t.Fatalf("skills clause = %T, want bson.M", query["artisanProfile.skills"])
	}
	in, ok := clause["$in"].(bson.A)
	if !ok || len(in) != 1 {
		t.Fatalf("$in = %v, want single pattern", clause["$in"])
	}
	pattern := in[0].(primitive.Regex)
	if pattern.Pattern != `a\.c\+` {
		t.Fatalf("pattern = %q, want %q", pattern.Pattern, `a\.c\+`)
	}
	if pattern.Options != "i" {
		t.Fatalf("options = %q, want %q", pattern.Options, "i")
	}
}

func TestArtisanFilterQuerySearch(t *testing.T) {
	query := ArtisanFilter{Search: "ada"}.Query()

	or, ok := query["$or"].(bson.A)
	if !ok {
		t.Fatalf("$or clause = %T, want bson.A", query["$or"])
	}
	if len(or) != 2 {
		t.Fatalf("$or has %d branches, want 2", len(or))
	}

	fields := map[string]bool{}
	for _, branch := range or {
		for field := range branch.(bson.M) {
			fields[field] = true
		}
	}
	if !fields["name"] || !fields["email"] {
		t.Fatalf("$or fields = %v, want name and email", fields)
	}
}

func TestArtisanFilterQueryClauses(t *testing.T) {
	available := true
	locationID := primitive.NewObjectID()

	query := ArtisanFilter{
		MinRating:  4.0,
		Available:  &available,
		Featured:   true,
		LocationID: locationID,
	}.Query()

	rating, ok := query["rating"].(bson.M)
	if !ok {
		t.Fatalf("rating clause = %T, want bson.M", query["rating"])
	}
	if got := rating["$gte"]; got != 4.0 {
		t.Fatalf("rating $gte = %v, want 4.0", got)
	}
	if got := query["artisanProfile.available"]; got != true {
		t.Fatalf("available = %v, want true", got)
	}
	if got := query["artisanProfile.location"]; got != locationID {
		t.Fatalf("location = %v, want %v", got, locationID)
	}
	if _, ok := query["artisanProfile.featuredUntil"].(bson.M); !ok {
		t.Fatal("featured filter missing $gt clause")
	}
}

func TestArtisanFilterSort(t *testing.T) {
	tests := []struct {
		name   string
		sortBy string
		want   string
	}{
		{name: "rating", sortBy: "rating", want: "rating"},
		{name: "experience", sortBy: "experience", want: "artisanProfile.yearsOfExperience"},
		{name: "default_newest", sortBy: "", want: "createdAt"},
		{name: "unknown_falls_back", sortBy: "bogus", want: "createdAt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sort := ArtisanFilter{SortBy: tt.sortBy}.sort()
			if len(sort) != 1 {
				t.Fatalf("sort has %d keys, want 1", len(sort))
			}
			if sort[0].Key != tt.want {
				t.Fatalf("sort key = %q, want %q", sort[0].Key, tt.want)
			}
			if sort[0].Value != -1 {
				t.Fatalf("sort direction = %v, want -1", sort[0].Value)
			}
		})
	}
}
