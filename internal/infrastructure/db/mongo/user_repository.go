package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/fieldops/installation-api/internal/core/domain"
	"github.com/fieldops/installation-api/internal/core/ports"
)

type userDoc struct {
	ID           string     `bson:"_id"`
	Name         string     `bson:"name"`
	Email        string     `bson:"email"`
	PasswordHash string     `bson:"password_hash"`
	RoleID       string     `bson:"role_id,omitempty"`
	Status       string     `bson:"status"`
	LastLoginAt  *time.Time `bson:"last_login_at,omitempty"`
	CreatedAt    time.Time  `bson:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at"`
}

func toUserDoc(u *domain.User) userDoc {
	return userDoc{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		RoleID:       u.RoleID,
		Status:       string(u.Status),
		LastLoginAt:  u.LastLoginAt,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (d userDoc) toDomain() domain.User {
	return domain.User{
		ID:           d.ID,
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		RoleID:       d.RoleID,
		Status:       domain.UserStatus(d.Status),
		LastLoginAt:  d.LastLoginAt,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}

// UserRepository implements ports.UserRepository on the users collection.
type UserRepository struct {
	col *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{col: db.Collection(colUsers)}
}

func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return r.col.CountDocuments(ctx, bson.M{})
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	doc, err := findOne[userDoc](ctx, r.col, bson.M{"_id": id}, domain.ErrUserNotFound)
	if err != nil {
		return nil, err
	}
	u := doc.toDomain()
	return &u, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	doc, err := findOne[userDoc](ctx, r.col, bson.M{"email": email}, domain.ErrUserNotFound)
	if err != nil {
		return nil, err
	}
	u := doc.toDomain()
	return &u, nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	if err := insert(ctx, r.col, toUserDoc(user)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	err := replaceByID(ctx, r.col, user.ID, toUserDoc(user), domain.ErrUserNotFound)
	if mongo.IsDuplicateKeyError(err) {
		return domain.Conflict("email already in use")
	}
	return err
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, hash string, at time.Time) error {
	return r.set(ctx, id, bson.M{"password_hash": hash, "updated_at": at})
}

func (r *UserRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.set(ctx, id, bson.M{"last_login_at": at})
}

func (r *UserRepository) set(ctx context.Context, id string, fields bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) List(ctx context.Context, f ports.UserFilter, p domain.Page) ([]domain.User, int64, error) {
	filter := bson.M{}
	if f.Q != "" {
		filter["$or"] = bson.A{bson.M{"name": contains(f.Q)}, bson.M{"email": contains(f.Q)}}
	}
	if f.RoleID != "" {
		filter["role_id"] = f.RoleID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}

	docs, total, err := findPage[userDoc](ctx, r.col, filter, sortNewestFirst, p)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	out := make([]domain.User, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, total, nil
}

// roleDoc keeps permissions raw: older rows hold a JSON-encoded string
// rather than an array.
type roleDoc struct {
	ID          string        `bson:"_id"`
	Name        string        `bson:"name"`
	Permissions bson.RawValue `bson:"permissions"`
	CreatedAt   time.Time     `bson:"created_at"`
	UpdatedAt   time.Time     `bson:"updated_at"`
}

type roleWrite struct {
	ID          string    `bson:"_id"`
	Name        string    `bson:"name"`
	Permissions []string  `bson:"permissions"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func toRoleWrite(role *domain.Role) roleWrite {
	perms := role.Permissions
	if perms == nil {
		perms = []string{}
	}
	return roleWrite{ID: role.ID, Name: role.Name, Permissions: perms, CreatedAt: role.CreatedAt, UpdatedAt: role.UpdatedAt}
}

func (d roleDoc) toDomain() domain.Role {
	return domain.Role{
		ID:          d.ID,
		Name:        d.Name,
		Permissions: domain.NormalizePermissions(rawPermissions(d.Permissions)),
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

func rawPermissions(v bson.RawValue) any {
	switch v.Type {
	case bsontype.String:
		return v.StringValue()
	case bsontype.Array:
		var arr []any
		if err := v.Unmarshal(&arr); err != nil {
			return nil
		}
		return arr
	default:
		return nil
	}
}

// RoleRepository implements ports.RoleRepository on the roles collection.
type RoleRepository struct {
	col *mongo.Collection
}

func NewRoleRepository(db *mongo.Database) *RoleRepository {
	return &RoleRepository{col: db.Collection(colRoles)}
}

func (r *RoleRepository) FindByID(ctx context.Context, id string) (*domain.Role, error) {
	doc, err := findOne[roleDoc](ctx, r.col, bson.M{"_id": id}, domain.ErrRoleNotFound)
	if err != nil {
		return nil, err
	}
	role := doc.toDomain()
	return &role, nil
}

func (r *RoleRepository) FindByName(ctx context.Context, name string) (*domain.Role, error) {
	doc, err := findOne[roleDoc](ctx, r.col, bson.M{"name": name}, domain.ErrRoleNotFound)
	if err != nil {
		return nil, err
	}
	role := doc.toDomain()
	return &role, nil
}

func (r *RoleRepository) Create(ctx context.Context, role *domain.Role) error {
	if err := insert(ctx, r.col, toRoleWrite(role)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrRoleNameTaken
		}
		return fmt.Errorf("insert role: %w", err)
	}
	return nil
}

func (r *RoleRepository) Update(ctx context.Context, role *domain.Role) error {
	err := replaceByID(ctx, r.col, role.ID, toRoleWrite(role), domain.ErrRoleNotFound)
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrRoleNameTaken
	}
	return err
}

func (r *RoleRepository) List(ctx context.Context, q string, p domain.Page) ([]domain.Role, int64, error) {
	filter := bson.M{}
	if q != "" {
		filter["name"] = contains(q)
	}
	docs, total, err := findPage[roleDoc](ctx, r.col, filter, sortByName, p)
	if err != nil {
		return nil, 0, fmt.Errorf("list roles: %w", err)
	}
	out := make([]domain.Role, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, total, nil
}
