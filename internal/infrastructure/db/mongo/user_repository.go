package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/thibou/auth-api/internal/core/domain"
)

const (
	collectionUsers = "users"

	indexEmail       = "uniq_email"
	indexSSOIdentity = "uniq_sso_identity"
)

// UserRepository implements ports.UserRepository on MongoDB. Uniqueness of
// email and of (provider, provider_id) is enforced by unique indexes, and every
// update is conditional on the stored version.
type UserRepository struct {
	col *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{col: db.Collection(collectionUsers)}
}

type ssoDocument struct {
	Provider    string    `bson:"provider"`
	ProviderID  string    `bson:"provider_id"`
	ConnectedAt time.Time `bson:"connected_at"`
	LastLogin   time.Time `bson:"last_login"`
}

type userDocument struct {
	ID           primitive.ObjectID `bson:"_id"`
	Name         string             `bson:"name"`
	Email        string             `bson:"email,omitempty"`
	PasswordHash string             `bson:"password_hash,omitempty"`
	Role         string             `bson:"role"`
	Scopes       []string           `bson:"scopes"`
	SSOProviders []ssoDocument      `bson:"sso_providers"`
	Version      int64              `bson:"version"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

// EnsureIndexes creates the unique indexes the store relies on.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().
				SetName(indexEmail).
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"email": bson.M{"$type": "string"}}),
		},
		{
			Keys: bson.D{
				{Key: "sso_providers.provider", Value: 1},
				{Key: "sso_providers.provider_id", Value: 1},
			},
			Options: options.Index().
				SetName(indexSSOIdentity).
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"sso_providers.provider_id": bson.M{"$exists": true}}),
		},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) FindByProviderIdentity(ctx context.Context, provider domain.Provider, providerID string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{
		"sso_providers": bson.M{"$elemMatch": bson.M{
			"provider":    string(provider),
			"provider_id": providerID,
		}},
	})
}

func (r *UserRepository) Insert(ctx context.Context, user *domain.User) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := toDocument(user)
	doc.ID = primitive.NewObjectID()
	doc.Version = 1

	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return mapWriteError("insert user", err)
	}
	user.ID = doc.ID.Hex()
	user.Version = doc.Version
	return nil
}

func (r *UserRepository) ConditionalUpdate(ctx context.Context, user *domain.User, expectedVersion int64) error {
	oid, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		return domain.ErrUserNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := toDocument(user)
	set := bson.M{
		"name":          doc.Name,
		"role":          doc.Role,
		"scopes":        doc.Scopes,
		"sso_providers": doc.SSOProviders,
		"updated_at":    doc.UpdatedAt,
	}
	unset := bson.M{}
	if doc.Email != "" {
		set["email"] = doc.Email
	} else {
		unset["email"] = ""
	}
	if doc.PasswordHash != "" {
		set["password_hash"] = doc.PasswordHash
	} else {
		unset["password_hash"] = ""
	}

	update := bson.M{"$set": set, "$inc": bson.M{"version": 1}}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": oid, "version": expectedVersion}, update)
	if err != nil {
		return mapWriteError("update user", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrVersionMismatch
	}
	user.Version = expectedVersion + 1
	return nil
}

func (r *UserRepository) List(ctx context.Context) ([]*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	var docs []userDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}

	out := make([]*domain.User, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toDomain())
	}
	return out, nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrUserNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc userDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return doc.toDomain(), nil
}

// mapWriteError turns unique index violations into domain conflicts.
func mapWriteError(op string, err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s: %w", op, err)
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, indexSSOIdentity):
		return domain.ErrIdentityLinkedElsewhere
	case strings.Contains(msg, indexEmail):
		return domain.ErrEmailTaken
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func toDocument(u *domain.User) userDocument {
	doc := userDocument{
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		Scopes:       append([]string{}, u.Scopes...),
		SSOProviders: make([]ssoDocument, 0, len(u.SSOIdentities)),
		Version:      u.Version,
		CreatedAt:    u.CreatedAt.UTC(),
		UpdatedAt:    u.UpdatedAt.UTC(),
	}
	for _, id := range u.SSOIdentities {
		doc.SSOProviders = append(doc.SSOProviders, ssoDocument{
			Provider:    string(id.Provider),
			ProviderID:  id.ProviderID,
			ConnectedAt: id.ConnectedAt.UTC(),
			LastLogin:   id.LastLogin.UTC(),
		})
	}
	return doc
}

func (d *userDocument) toDomain() *domain.User {
	u := &domain.User{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Role:         domain.Role(d.Role),
		Scopes:       d.Scopes,
		Version:      d.Version,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
	for _, s := range d.SSOProviders {
		u.SSOIdentities = append(u.SSOIdentities, domain.SSOIdentity{
			Provider:    domain.Provider(s.Provider),
			ProviderID:  s.ProviderID,
			ConnectedAt: s.ConnectedAt.UTC(),
			LastLogin:   s.LastLogin.UTC(),
		})
	}
	return u
}
