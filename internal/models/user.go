package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Role string

const (
	RoleUser    Role = "user"
	RoleArtisan Role = "artisan"
	RoleAdmin   Role = "admin"
)

func ValidRole(r Role) bool {
	switch r {
	case RoleUser, RoleArtisan, RoleAdmin:
		return true
	}
	return false
}

const DefaultAvatarURL = "https://avatar.iran.liara.run/public/32"

type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"passwordHash" json:"-"`
	Phone        string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Address      string             `bson:"address,omitempty" json:"address,omitempty"`
	AvatarURL    string             `bson:"avatarUrl" json:"avatarUrl"`
	Role         Role               `bson:"role" json:"role"`
	Rating       float64            `bson:"rating" json:"rating"`

	ArtisanProfile *ArtisanProfile `bson:"artisanProfile,omitempty" json:"artisanProfile,omitempty"`

	IsEmailVerified bool `bson:"isEmailVerified" json:"isEmailVerified"`
	IsBanned        bool `bson:"isBanned" json:"-"`
	IsDeleted       bool `bson:"isDeleted" json:"-"`

	// One-time token material; only sha256 hashes are ever stored.
	VerificationTokenHash    string     `bson:"verificationToken,omitempty" json:"-"`
	VerificationTokenExpires *time.Time `bson:"verificationTokenExpires,omitempty" json:"-"`
	ResetPasswordTokenHash   string     `bson:"resetPasswordToken,omitempty" json:"-"`
	ResetPasswordExpires     *time.Time `bson:"resetPasswordExpires,omitempty" json:"-"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

type ArtisanProfile struct {
	Bio               string             `bson:"bio,omitempty" json:"bio,omitempty"`
	Category          string             `bson:"category,omitempty" json:"category,omitempty"`
	Skills            []string           `bson:"skills,omitempty" json:"skills,omitempty"`
	YearsOfExperience int                `bson:"yearsOfExperience,omitempty" json:"yearsOfExperience,omitempty"`
	LocationID        primitive.ObjectID `bson:"location,omitempty" json:"locationId,omitempty"`
	Coordinates       GeoPoint           `bson:"coordinates" json:"coordinates"`
	Available         bool               `bson:"available" json:"available"`
	IsApproved        bool               `bson:"isApproved" json:"isApproved"`
	PortfolioImages   []string           `bson:"portfolioImages,omitempty" json:"portfolioImages,omitempty"`
	FeaturedUntil     *time.Time         `bson:"featuredUntil,omitempty" json:"featuredUntil,omitempty"`
}

// GeoPoint is a GeoJSON point, longitude first.
type GeoPoint struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"`
}

func NewGeoPoint(lng, lat float64) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: []float64{lng, lat}}
}

func (u *User) IsFeatured(now time.Time) bool {
	return u.ArtisanProfile != nil &&
		u.ArtisanProfile.FeaturedUntil != nil &&
		u.ArtisanProfile.FeaturedUntil.After(now)
}
