package controllers

import (
	"strconv"

	"meetclub_go/database"
	"meetclub_go/middleware"
	"meetclub_go/models"
	"meetclub_go/utils"

	"github.com/gofiber/fiber/v2"
)

type MemberController struct{}

// GetMembers returns all members with pagination
func (mc *MemberController) GetMembers(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	offset := (page - 1) * limit

	var members []models.Member
	var total int64

	query := database.DB.Model(&models.Member{})

	// Filter by profession if specified
	if profession := c.Query("profession"); profession != "" {
		query = query.Where("profession = ?", profession)
	}

	query.Count(&total)

	if err := query.Order("id ASC").Offset(offset).Limit(limit).Find(&members).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch members",
		})
	}

	return c.JSON(fiber.Map{
		"members": members,
		"pagination": fiber.Map{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// GetMember returns a specific member by ID
func (mc *MemberController) GetMember(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid member ID",
		})
	}

	var member models.Member
	if err := database.DB.First(&member, uint(id)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "member not found",
		})
	}

	return c.JSON(fiber.Map{
		"member": member,
	})
}

// CreateMember creates a new member
func (mc *MemberController) CreateMember(c *fiber.Ctx) error {
	var member models.Member
	if err := c.BodyParser(&member); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	member.Name = utils.SanitizeString(member.Name)
	member.Profession = utils.SanitizeString(member.Profession)
	if member.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Name is required",
		})
	}

	if err := database.DB.Create(&member).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create member",
		})
	}

	middleware.LogActivity(c, "CREATE", "members", member.ID, member)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Member created successfully",
		"member":  member,
	})
}

// UpdateMember updates an existing member
func (mc *MemberController) UpdateMember(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid member ID",
		})
	}

	var member models.Member
	if err := database.DB.First(&member, uint(id)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "member not found",
		})
	}

	var updateData models.Member
	if err := c.BodyParser(&updateData); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := database.DB.Model(&member).Updates(updateData).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update member",
		})
	}

	middleware.LogActivity(c, "UPDATE", "members", member.ID, updateData)

	return c.JSON(fiber.Map{
		"message": "Member updated successfully",
		"member":  member,
	})
}

// DeleteMember deletes a member
func (mc *MemberController) DeleteMember(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid member ID",
		})
	}

	var member models.Member
	if err := database.DB.First(&member, uint(id)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "member not found",
		})
	}

	if err := database.DB.Delete(&member).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete member",
		})
	}

	middleware.LogActivity(c, "DELETE", "members", member.ID, member)

	return c.JSON(fiber.Map{
		"message": "Member deleted successfully",
	})
}
