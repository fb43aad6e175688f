package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"zipngo/apperror"
	"zipngo/metrics"
	"zipngo/models"
)

const userNotFound = "User not found"

// UserRepository stores users.
type UserRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(coll *mongo.Collection) *UserRepository {
	return &UserRepository{coll: coll}
}

// Create inserts u and sets its ID. A taken email yields apperror.Conflict.
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	defer metrics.ObserveDBQuery(UsersCollection, "insert", time.Now())

	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if _, err := r.coll.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperror.Conflict("Email already exists", err)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// FindByResetToken returns the user holding hashedToken whose expiry is
// after now. Both conditions are part of the same filter.
func (r *UserRepository) FindByResetToken(ctx context.Context, hashedToken string, now time.Time) (*models.User, error) {
	return r.findOne(ctx, bson.M{
		"resetPasswordToken":  hashedToken,
		"resetPasswordExpire": bson.M{"$gt": now},
	})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	defer metrics.ObserveDBQuery(UsersCollection, "find_one", time.Now())

	var u models.User
	if err := r.coll.FindOne(ctx, filter).Decode(&u); err != nil {
		return nil, notFound(err, userNotFound, "find user")
	}
	return &u, nil
}

// List returns every user, newest first.
func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	defer metrics.ObserveDBQuery(UsersCollection, "find", time.Now())

	cur, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users, err := decodeAll[models.User](ctx, cur)
	if err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}

// UpdateProfile applies the non-nil fields of p and returns the updated user.
func (r *UserRepository) UpdateProfile(ctx context.Context, id primitive.ObjectID, p models.ProfileUpdate) (*models.User, error) {
	set := bson.M{}
	if p.Name != nil {
		set["name"] = *p.Name
	}
	if p.Email != nil {
		set["email"] = *p.Email
	}
	return r.updateOne(ctx, id, bson.M{"$set": set})
}

func (r *UserRepository) UpdateRoleAndProfile(ctx context.Context, id primitive.ObjectID, u models.RoleUpdate) (*models.User, error) {
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{
		"name":  u.Name,
		"email": u.Email,
		"role":  u.Role,
	}})
}

// SetResetToken stores a hashed reset token and its expiry without touching
// any other field.
func (r *UserRepository) SetResetToken(ctx context.Context, id primitive.ObjectID, hashedToken string, expires time.Time) error {
	_, err := r.updateOne(ctx, id, bson.M{"$set": bson.M{
		"resetPasswordToken":  hashedToken,
		"resetPasswordExpire": expires,
	}})
	return err
}

func (r *UserRepository) ClearResetToken(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.updateOne(ctx, id, bson.M{"$unset": bson.M{
		"resetPasswordToken":  "",
		"resetPasswordExpire": "",
	}})
	return err
}

// UpdatePassword stores a new password hash and invalidates any pending
// reset token in the same write.
func (r *UserRepository) UpdatePassword(ctx context.Context, id primitive.ObjectID, hashedPassword string) error {
	_, err := r.updateOne(ctx, id, bson.M{
		"$set": bson.M{"password": hashedPassword},
		"$unset": bson.M{
			"resetPasswordToken":  "",
			"resetPasswordExpire": "",
		},
	})
	return err
}

func (r *UserRepository) updateOne(ctx context.Context, id primitive.ObjectID, update bson.M) (*models.User, error) {
	defer metrics.ObserveDBQuery(UsersCollection, "update", time.Now())

	var u models.User
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&u)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, apperror.Conflict("Email already exists", err)
		}
		return nil, notFound(err, userNotFound, "update user")
	}
	return &u, nil
}

// Delete removes the user and returns the removed document.
func (r *UserRepository) Delete(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	defer metrics.ObserveDBQuery(UsersCollection, "delete", time.Now())

	var u models.User
	if err := r.coll.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, notFound(err, userNotFound, "delete user")
	}
	return &u, nil
}
