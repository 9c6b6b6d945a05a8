package catalog

import "github.com/withinyouai/claritycore/internal/models"

// coreDiscoveryQuestions is the default question set. Each question is tagged
// with the self-discovery framework it draws on; the follow-up prompt is a
// probing hint folded into the report request context, not a separate question.
var coreDiscoveryQuestions = []models.DiscoveryQuestion{
	{
		ID:             1,
		Category:       "What You Love",
		Framework:      "Ikigai + Flow State (Csikszentmihalyi)",
		Text:           "Tell me about activities where you completely lose track of time. What are you doing when hours feel like minutes?",
		FollowUpPrompt: "If mentions multiple activities, ask which one feels most fulfilling and why.",
		Kind:           models.QuestionKindText,
		Required:       true,
	},
	{
		ID:             2,
		Category:       "What You Love",
		Framework:      "Ikigai + Self-Determination Theory",
		Text:           "Imagine money, status, and others' opinions don't exist. What would you spend your days doing? Be specific about what that looks like.",
		FollowUpPrompt: "If vague, ask for a typical day description with specific activities.",
		Kind:           models.QuestionKindText,
		Required:       true,
	},
	{
		ID:             3,
		Category:       "What You're Good At",
		Framework:      "Ikigai + Strengths-Based Psychology",
		Text:           "What skills or talents do people consistently compliment you on or ask for your help with? Include both professional and personal.",
		FollowUpPrompt: "If modest, probe for specific examples or situations where this skill helped someone.",
		Kind:           models.QuestionKindText,
		Required:       true,
	},
	{
		ID:             4,
		Category:       "What You're Good At",
		Framework:      "Ikigai + Achievement Analysis",
		Text:           "Describe your proudest achievement in life. What skills, qualities, or strengths did you use to make it happen?",
		FollowUpPrompt: "Ask how they could apply those same strengths to a different area of life.",
		Kind:           models.QuestionKindText,
		Required:       true,
	},
	{
		ID:             5,
		Category:       "What The World Needs",
		Framework:      "Ikigai + Purpose Psychology (Seligman)",
		Text:           "What problems or challenges in the world genuinely upset you? What do you wish you could change or improve?",
		FollowUpPrompt: "If global, ask to narrow to a specific community or group they want to impact.",
		Kind:           models.QuestionKindText,
		Required:       true,
	},
	{
		ID:             6,
		Category:       "What The World Needs",
		Framework:      "Ikigai + Empathy Research",
		Text:           "When you see someone struggling or suffering, what types of situations move you most to want to help?",
		FollowUpPrompt: "Explore if they've ever helped in that way and how it felt.",
		Kind:           models.QuestionKindText,
		Required:       true,
	},
	{
		ID:             7,
		Category:       "What You Can Be Paid For",
		Framework:      "Ikigai + Market Analysis",
		Text:           "What professional skills do you currently have, and which ones do you believe you could develop within the next 1-2 years?",
		FollowUpPrompt: "Ask which of these skills they're most excited to develop and why.",
		Kind:           models.QuestionKindText,
		Required:       true,
	},
	{
		ID:             8,
		Category:       "What You Can Be Paid For",
		Framework:      "Ikigai + Think and Grow Rich",
		Text:           "If you had to create a product or service that would genuinely improve people's lives, what would it be and who would it serve?",
		FollowUpPrompt: "Ask why that specific group needs this solution.",
		Kind:           models.QuestionKindText,
		Required:       true,
	},
	{
		ID:             9,
		Category:       "Current Situation",
		Framework:      "7 Habits (Circle of Influence)",
		Text:           "What's your current career or life situation? What aspects feel most unfulfilling or misaligned with who you want to be?",
		FollowUpPrompt: "Distinguish between what they can control vs what they can't.",
		Kind:           models.QuestionKindText,
		Required:       true,
	},
	{
		ID:             10,
		Category:       "Vision",
		Framework:      "7 Habits + Visualization Research",
		Text:           "Fast forward 5 years: Describe a perfect day in your ideal life. Where do you live? What do you do from morning to night? Who are you with?",
		FollowUpPrompt: "Ask how that day makes them feel and why it's important.",
		Kind:           models.QuestionKindText,
		Required:       true,
	},
	{
		ID:             11,
		Category:       "Obstacles",
		Framework:      "Growth Mindset (Carol Dweck)",
		Text:           "What's currently holding you back from pursuing your dreams? Be honest about both external obstacles and internal fears.",
		FollowUpPrompt: "If they list obstacles, ask which ONE, if removed, would have the biggest impact.",
		Kind:           models.QuestionKindText,
		Required:       true,
	},
	{
		ID:             12,
		Category:       "Learning Style",
		Framework:      "Self-Determination Theory",
		Text:           "How do you learn best? Do you prefer structured courses, self-directed exploration, learning by doing, or working with mentors?",
		FollowUpPrompt: "Ask for a specific example of when they learned something successfully this way.",
		Kind:           models.QuestionKindText,
		Required:       false,
	},
	{
		ID:             13,
		Category:       "Burning Desire",
		Framework:      "Think and Grow Rich",
		Text:           "If you could master ONE new skill or achieve ONE major goal in the next year that would transform your life, what would it be and why?",
		FollowUpPrompt: "Probe the emotional reason behind this desire.",
		Kind:           models.QuestionKindText,
		Required:       true,
	},
	{
		ID:             14,
		Category:       "Impact & Connection",
		Framework:      "Self-Determination Theory (Relatedness)",
		Text:           "Who do you want to help or impact through your work? What kind of difference do you want to make in their lives?",
		FollowUpPrompt: "Ask why this specific group matters to them personally.",
		Kind:           models.QuestionKindText,
		Required:       false,
	},
	{
		ID:             15,
		Category:       "Values",
		Framework:      "Values Clarification Research",
		Text:           "What are your non-negotiables in life? What values or principles are you unwilling to compromise on, even for success?",
		FollowUpPrompt: "Ask for a time they had to make a difficult choice between these values and something else.",
		Kind:           models.QuestionKindText,
		Required:       true,
	},
}
