package db

import (
	"log"
	"os"
	"yatube/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Init() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		// Fallback for local dev if not set
		dsn = "host=localhost user=postgres password=postgres dbname=yatube port=5432 sslmode=disable TimeZone=UTC"
	}

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	log.Println("Database connection established")

	// Auto Migrate
	err = DB.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.Post{},
		&models.Comment{},
		&models.Follow{},
	)
	if err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database migration completed")

	// Seed initial groups
	seedGroups()
}

func seedGroups() {
	// 检查是否已有群组数据
	var count int64
	DB.Model(&models.Group{}).Count(&count)
	if count > 0 {
		log.Println("Groups already seeded, skipping")
		return
	}

	// 创建预设群组
	groups := []models.Group{
		{Title: "技术", Slug: "tech", Description: "技术相关的记录和分享"},
		{Title: "生活", Slug: "life", Description: "生活日常、随笔"},
		{Title: "阅读", Slug: "reading", Description: "读书笔记与摘录"},
	}

	for _, group := range groups {
		if err := DB.Create(&group).Error; err != nil {
			log.Printf("Failed to create group %s: %v", group.Slug, err)
		}
	}
	log.Println("Initial groups created successfully")
}
