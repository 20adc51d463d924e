package db

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"abegfix/internal/models"
)

// OneTimeTokenKind selects which pair of account fields a one-time token
// lives in.
type OneTimeTokenKind string

const (
	TokenVerification  OneTimeTokenKind = "verification"
	TokenPasswordReset OneTimeTokenKind = "passwordReset"
)

type UserRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(database *DB) *UserRepository {
	return &UserRepository{collection: database.Collection("users")}
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.AvatarURL == "" {
		user.AvatarURL = models.DefaultAvatarURL
	}

	result, err := r.collection.InsertOne(ctx, user)
	if err != nil {
		return fmt.Errorf("creating user: %w", err)
	}

	if id, ok := result.InsertedID.(primitive.ObjectID); ok {
		user.ID = id
	}
	return nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, filter).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return &user, nil
}

// Save replaces the whole document. UpdatedAt is bumped here so callers can
// mutate the struct and persist in one step.
func (r *UserRepository) Save(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": user.ID}, user)
	if err != nil {
		return fmt.Errorf("saving user: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	return r.updateByHexID(ctx, id, bson.M{
		"$set": bson.M{"passwordHash": passwordHash, "updatedAt": time.Now().UTC()},
	})
}

// SetOneTimeToken stores the hash and expiry for a verification or reset
// token, replacing any previous one of the same kind.
func (r *UserRepository) SetOneTimeToken(ctx context.Context, id string, kind OneTimeTokenKind, hash string, expiresAt time.Time) error {
	hashField, expiresField := oneTimeTokenFields(kind)
	return r.updateByHexID(ctx, id, bson.M{
		"$set": bson.M{
			hashField:    hash,
			expiresField: expiresAt.UTC(),
			"updatedAt":  time.Now().UTC(),
		},
	})
}

// FindByOneTimeToken looks up the account holding an unexpired token hash.
func (r *UserRepository) FindByOneTimeToken(ctx context.Context, kind OneTimeTokenKind, hash string) (*models.User, error) {
	hashField, expiresField := oneTimeTokenFields(kind)
	return r.findOne(ctx, bson.M{
		hashField:    hash,
		expiresField: bson.M{"$gt": time.Now().UTC()},
	})
}

// ConsumeVerificationToken marks the email verified and clears the token
// fields so the raw value cannot be redeemed twice.
func (r *UserRepository) ConsumeVerificationToken(ctx context.Context, id string) error {
	return r.updateByHexID(ctx, id, bson.M{
		"$set":   bson.M{"isEmailVerified": true, "updatedAt": time.Now().UTC()},
		"$unset": bson.M{"verificationToken": "", "verificationTokenExpires": ""},
	})
}

// ConsumeResetToken installs the new password hash and clears the reset
// token fields in one update.
func (r *UserRepository) ConsumeResetToken(ctx context.Context, id string, passwordHash string) error {
	return r.updateByHexID(ctx, id, bson.M{
		"$set":   bson.M{"passwordHash": passwordHash, "updatedAt": time.Now().UTC()},
		"$unset": bson.M{"resetPasswordToken": "", "resetPasswordExpires": ""},
	})
}

func (r *UserRepository) SetBanned(ctx context.Context, id string, banned bool) error {
	return r.updateByHexID(ctx, id, bson.M{
		"$set": bson.M{"isBanned": banned, "updatedAt": time.Now().UTC()},
	})
}

func (r *UserRepository) SetRole(ctx context.Context, id string, role models.Role) error {
	return r.updateByHexID(ctx, id, bson.M{
		"$set": bson.M{"role": role, "updatedAt": time.Now().UTC()},
	})
}

func (r *UserRepository) SoftDelete(ctx context.Context, id string) error {
	return r.updateByHexID(ctx, id, bson.M{
		"$set": bson.M{"isDeleted": true, "updatedAt": time.Now().UTC()},
	})
}

func (r *UserRepository) HardDelete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) ApproveArtisan(ctx context.Context, id string) error {
	return r.updateByHexID(ctx, id, bson.M{
		"$set": bson.M{"artisanProfile.isApproved": true, "updatedAt": time.Now().UTC()},
	})
}

// SetFeatured stamps or clears the featured window on an artisan profile.
func (r *UserRepository) SetFeatured(ctx context.Context, id string, until *time.Time) error {
	if until == nil {
		return r.updateByHexID(ctx, id, bson.M{
			"$unset": bson.M{"artisanProfile.featuredUntil": ""},
			"$set":   bson.M{"updatedAt": time.Now().UTC()},
		})
	}
	return r.updateByHexID(ctx, id, bson.M{
		"$set": bson.M{"artisanProfile.featuredUntil": until.UTC(), "updatedAt": time.Now().UTC()},
	})
}

// ClearExpiredFeatures unsets featuredUntil on every artisan whose window has
// passed. Returns the number of profiles cleaned.
func (r *UserRepository) ClearExpiredFeatures(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.collection.UpdateMany(ctx,
		bson.M{
			"role":                         models.RoleArtisan,
			"artisanProfile.featuredUntil": bson.M{"$lte": now.UTC()},
		},
		bson.M{"$unset": bson.M{"artisanProfile.featuredUntil": ""}},
	)
	if err != nil {
		return 0, fmt.Errorf("clearing expired features: %w", err)
	}
	return result.ModifiedCount, nil
}

func (r *UserRepository) updateByHexID(ctx context.Context, id string, update bson.M) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	result, err := r.collection.UpdateByID(ctx, oid, update)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ArtisanFilter is the typed directory filter. Fields map to explicit query
// clauses; there is deliberately no pass-through of raw request parameters.
type ArtisanFilter struct {
	Skill      string
	Category   string
	LocationID primitive.ObjectID
	MinRating  float64
	Available  *bool
	Featured   bool
	Search     string
	SortBy     string // "rating", "experience" or "" for newest
}

// Query builds the bson filter. Free-text inputs are regex-escaped before
// being used for fuzzy matching.
func (f ArtisanFilter) Query() bson.M {
	query := bson.M{"role": models.RoleArtisan, "isDeleted": false}

	if f.Skill != "" {
		query["artisanProfile.skills"] = bson.M{
			"$in": bson.A{primitive.Regex{Pattern: regexp.QuoteMeta(f.Skill), Options: "i"}},
		}
	}
	if f.Category != "" {
		query["artisanProfile.category"] = primitive.Regex{Pattern: regexp.QuoteMeta(f.Category), Options: "i"}
	}
	if !f.LocationID.IsZero() {
		query["artisanProfile.location"] = f.LocationID
	}
	if f.MinRating > 0 {
		query["rating"] = bson.M{"$gte": f.MinRating}
	}
	if f.Available != nil {
		query["artisanProfile.available"] = *f.Available
	}
	if f.Featured {
		query["artisanProfile.featuredUntil"] = bson.M{"$gt": time.Now().UTC()}
	}
	if f.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
		query["$or"] = bson.A{bson.M{"name": pattern}, bson.M{"email": pattern}}
	}

	return query
}

func (f ArtisanFilter) sort() bson.D {
	switch f.SortBy {
	case "rating":
		return bson.D{{Key: "rating", Value: -1}}
	case "experience":
		return bson.D{{Key: "artisanProfile.yearsOfExperience", Value: -1}}
	default:
		return bson.D{{Key: "createdAt", Value: -1}}
	}
}

// FindArtisans lists directory entries matching the filter plus the total
// count for pagination.
func (r *UserRepository) FindArtisans(ctx context.Context, filter ArtisanFilter, page Page) ([]models.User, int64, error) {
	query := filter.Query()

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("counting artisans: %w", err)
	}

	cursor, err := r.collection.Find(ctx, query, options.Find().
		SetSort(filter.sort()).
		SetSkip(page.Skip()).
		SetLimit(page.Limit()))
	if err != nil {
		return nil, 0, fmt.Errorf("querying artisans: %w", err)
	}
	defer cursor.Close(ctx)

	var artisans []models.User
	if err := cursor.All(ctx, &artisans); err != nil {
		return nil, 0, fmt.Errorf("decoding artisans: %w", err)
	}

	return artisans, total, nil
}

// FindNearbyArtisans runs a 2dsphere $near query around the given point.
// radiusMeters bounds the search; results come back nearest first.
func (r *UserRepository) FindNearbyArtisans(ctx context.Context, lng, lat float64, radiusMeters float64, limit int64) ([]models.User, error) {
	query := bson.M{
		"role":      models.RoleArtisan,
		"isDeleted": false,
		"artisanProfile.coordinates": bson.M{
			"$near": bson.M{
				"$geometry": bson.M{
					"type":        "Point",
					"coordinates": bson.A{lng, lat},
				},
				"$maxDistance": radiusMeters,
			},
		},
	}

	cursor, err := r.collection.Find(ctx, query, options.Find().SetLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("querying nearby artisans: %w", err)
	}
	defer cursor.Close(ctx)

	var artisans []models.User
	if err := cursor.All(ctx, &artisans); err != nil {
		return nil, fmt.Errorf("decoding nearby artisans: %w", err)
	}

	return artisans, nil
}

// UserListFilter narrows the admin user listing.
type UserListFilter struct {
	Role   models.Role
	Banned *bool
}

func (f UserListFilter) query() bson.M {
	query := bson.M{"isDeleted": false}
	if f.Role != "" {
		query["role"] = f.Role
	}
	if f.Banned != nil {
		query["isBanned"] = *f.Banned
	}
	return query
}

func (r *UserRepository) List(ctx context.Context, filter UserListFilter, page Page) ([]models.User, int64, error) {
	query := filter.query()

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("counting users: %w", err)
	}

	cursor, err := r.collection.Find(ctx, query, options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(page.Skip()).
		SetLimit(page.Limit()))
	if err != nil {
		return nil, 0, fmt.Errorf("querying users: %w", err)
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, 0, fmt.Errorf("decoding users: %w", err)
	}

	return users, total, nil
}

// Analytics are the admin dashboard counters.
type Analytics struct {
	TotalUsers       int64 `json:"totalUsers"`
	TotalArtisans    int64 `json:"totalArtisans"`
	BannedUsers      int64 `json:"bannedUsers"`
	ApprovedArtisans int64 `json:"approvedArtisans"`
	SoftDeletedUsers int64 `json:"softDeletedUsers"`
}

func (r *UserRepository) CollectAnalytics(ctx context.Context) (*Analytics, error) {
	var analytics Analytics
	counts := map[*int64]bson.M{
		&analytics.TotalUsers:       {},
		&analytics.TotalArtisans:    {"role": models.RoleArtisan},
		&analytics.BannedUsers:      {"isBanned": true},
		&analytics.ApprovedArtisans: {"role": models.RoleArtisan, "artisanProfile.isApproved": true},
		&analytics.SoftDeletedUsers: {"isDeleted": true},
	}

	for dst, filter := range counts {
		n, err := r.collection.CountDocuments(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("collecting analytics: %w", err)
		}
		*dst = n
	}

	return &analytics, nil
}

// SetRating stores the recomputed average review rating.
func (r *UserRepository) SetRating(ctx context.Context, id string, rating float64) error {
	return r.updateByHexID(ctx, id, bson.M{
		"$set": bson.M{"rating": rating, "updatedAt": time.Now().UTC()},
	})
}

func oneTimeTokenFields(kind OneTimeTokenKind) (hashField, expiresField string) {
	if kind == TokenPasswordReset {
		return "resetPasswordToken", "resetPasswordExpires"
	}
	return "verificationToken", "verificationTokenExpires"
}
