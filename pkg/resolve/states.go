package resolve

import (
	"context"
	"fmt"

	"go-killtracker/pkg/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	userStatesCollection = "user_states"
	groupRolesCollection = "group_roles"
)

// UserState maps one character to an auth state. The collection is
// maintained by the external auth system; this service only reads it.
type UserState struct {
	CharacterID int64  `bson:"character_id" json:"character_id"`
	State       string `bson:"state" json:"state"`
}

// GroupRole maps one chat group to the role that gets pinged for it
type GroupRole struct {
	GroupID int64 `bson:"group_id" json:"group_id"`
	RoleID  int64 `bson:"role_id" json:"role_id"`
}

// UserStateLookup resolves character IDs to auth states. Characters with
// no mapping are simply absent from the result.
type UserStateLookup interface {
	States(ctx context.Context, characterIDs []int64) (map[int64]string, error)
}

// GroupRoleLookup resolves chat group IDs to pingable role IDs
type GroupRoleLookup interface {
	RoleForGroup(ctx context.Context, groupID int64) (int64, bool, error)
}

// StateService reads the user-state and group-role maps from MongoDB
type StateService struct {
	mongodb *database.MongoDB
}

// NewStateService creates a new state lookup service
func NewStateService(mongodb *database.MongoDB) *StateService {
	return &StateService{mongodb: mongodb}
}

// EnsureIndexes creates the lookup indexes for both collections
func (s *StateService) EnsureIndexes(ctx context.Context) error {
	_, err := s.mongodb.Collection(userStatesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "character_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create user_states index: %w", err)
	}

	_, err = s.mongodb.Collection(groupRolesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "group_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create group_roles index: %w", err)
	}

	return nil
}

// States returns the auth state for every character that has one
func (s *StateService) States(ctx context.Context, characterIDs []int64) (map[int64]string, error) {
	states := make(map[int64]string)
	if len(characterIDs) == 0 {
		return states, nil
	}

	cursor, err := s.mongodb.Collection(userStatesCollection).Find(ctx, bson.M{
		"character_id": bson.M{"$in": characterIDs},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query user states: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var state UserState
		if err := cursor.Decode(&state); err != nil {
			return nil, fmt.Errorf("failed to decode user state: %w", err)
		}
		states[state.CharacterID] = state.State
	}

	return states, cursor.Err()
}

// RoleForGroup returns the role mapped to a chat group, if any
func (s *StateService) RoleForGroup(ctx context.Context, groupID int64) (int64, bool, error) {
	var role GroupRole
	err := s.mongodb.Collection(groupRolesCollection).FindOne(ctx, bson.M{"group_id": groupID}).Decode(&role)
	if err == mongo.ErrNoDocuments {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to query group role: %w", err)
	}

	return role.RoleID, true, nil
}
