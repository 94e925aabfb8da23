//go:build ignore

package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Seeds a week of fake interaction edges and matching profiles so fart
// and chrono-trigger can be exercised without running the ingestion
// pipeline.
//
// Usage: go run scripts/seed_interactions.go

const (
	mongoURI = "mongodb://localhost:27017"
	database = "bsky"
	actors   = 12
	edges    = 2000
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		log.Fatal("Failed to connect to mongodb:", err)
	}
	defer client.Disconnect(context.Background())

	db := client.Database(database)

	dids := make([]string, actors)
	for i := range dids {
		dids[i] = fmt.Sprintf("did:plc:seed%04d", i)
	}

	kinds := []string{"interactions.like", "interactions.repost", "interactions.post"}
	now := time.Now().UTC().Truncate(time.Hour)

	inserted := 0
	for i := 0; i < edges; i++ {
		a := dids[rand.Intn(len(dids))]
		s := dids[rand.Intn(len(dids))]
		if a == s {
			continue
		}
		kind := kinds[rand.Intn(len(kinds))]
		doc := bson.M{
			"_id": fmt.Sprintf("%s/seed%06d", a, i),
			"a":   a,
			"s":   s,
			"t":   now.Add(-time.Duration(rand.Intn(7*24)) * time.Hour),
		}
		if kind == "interactions.post" {
			doc["c"] = rand.Intn(300)
		}
		if _, err := db.Collection(kind).InsertOne(ctx, doc); err != nil {
			log.Fatal("Failed to insert edge:", err)
		}
		inserted++
	}

	for i, did := range dids {
		_, err := db.Collection("app.bsky.actor.profile").UpdateOne(ctx,
			bson.M{"_id": did},
			bson.M{"$set": bson.M{
				"handle":     fmt.Sprintf("seed%04d.test", i),
				"updated_at": time.Now().UTC(),
			}},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			log.Fatal("Failed to upsert profile:", err)
		}
	}

	fmt.Printf("Seeded %d actors and %d edges into %s\n", actors, inserted, database)
}
