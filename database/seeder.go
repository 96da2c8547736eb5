package database

import (
	"errors"
	"fmt"

	"github.com/evandrarf/halpi-mastery/internal/delivery/http/repository"
	"github.com/evandrarf/halpi-mastery/internal/mastery"
	"github.com/evandrarf/halpi-mastery/internal/pkg/mapper"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DemoKey is the activity and learner the demo concepts are seeded for.
var DemoKey = mastery.SessionKey{ActivityID: "a2-ch0-step3", LearnerID: "demo-learner"}

// DemoConcepts - Two authored cards to try the exercise with
var DemoConcepts = []mastery.Concept{
	{
		ID:         "c1",
		Name:       "Photosynthèse",
		What:       "Processus par lequel les plantes convertissent la lumière en énergie chimique",
		Why:        "Produire le glucose nécessaire à la plante et libérer de l'oxygène",
		How:        "La chlorophylle capte la lumière, l'eau et le CO2 sont transformés en glucose",
		Where:      "Dans les chloroplastes des cellules végétales",
		Essentials: "Lumière + eau + CO2 donnent glucose + oxygène",
	},
	{
		ID:   "c2",
		Name: "Dissonance cognitive",
		What: "Tension ressentie quand deux croyances ou une croyance et un comportement se contredisent",
		Who:  "Théorisée par Leon Festinger",
		When: "1957",
		CustomFields: []mastery.CustomField{
			{ID: "example", Title: "Exemple", Content: "Un fumeur qui sait que fumer est dangereux minimise les risques"},
		},
	},
}

// SeedDemoConcepts - Store the demo concepts unless the demo activity already has some
func SeedDemoConcepts(db *gorm.DB, log logrus.FieldLogger) error {
	repo := repository.NewMasteryRepository(db)

	existing, err := repo.FindConceptsByActivity(db, DemoKey.ActivityID, DemoKey.LearnerID)
	switch {
	case err == nil && len(existing.Concepts) > 0:
		log.Info("Demo concepts already seeded, skipping...")
		return nil
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("failed to check demo concepts: %w", err)
	}

	row, err := mapper.ToActivityConcept(DemoKey, DemoConcepts)
	if err != nil {
		return fmt.Errorf("failed to marshal demo concepts: %w", err)
	}
	if err := repo.UpsertConcepts(db, row); err != nil {
		return fmt.Errorf("failed to seed demo concepts: %w", err)
	}

	log.WithField("activity_id", DemoKey.ActivityID).Infof("Seeded %d demo concepts", len(DemoConcepts))
	return nil
}
