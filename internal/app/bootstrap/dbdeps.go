// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database and back-end dependencies for the app.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	// Redis is nil when domain events are disabled.
	Redis *redis.Client

	// services is allocated by ConnectDB and filled in by Startup. DBDeps is
	// passed by value between hooks, so later hooks reach shared state
	// through this pointer.
	services *services
}
