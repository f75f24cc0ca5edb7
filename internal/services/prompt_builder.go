// internal/services/prompt_builder.go
package services

import (
	"fmt"
	"strings"

	"github.com/Corphon/PersonaChat/internal/models"
)

// 提示词中保留的最近对话轮数
const recentTurnLimit = 5

// regularTurnSuffix 普通对话轮次追加在系统提示词末尾
const regularTurnSuffix = `

In addition to your regular response, please include:
            - 'action': A brief description of what you're physically doing as you speak (e.g., "sipping coffee", "pacing nervously")
            - 'location': Where you currently are (be specific, and maintain consistency with previous locations unless you're explicitly moving)

            Your action should reflect your personality and current emotional state.

            Format your response as a JSON object as follows:
            {
            "text": "Your actual response to the user - this should be what you want to say directly",
            "mood": "your current mood (happy, sad, angry, confused, etc.)",
            "emotions": {"joy": 0.8, "curiosity": 0.6},
            "opinion_of_user": "your opinion of the user (positive, negative, neutral, etc.)",
            "action": "what you're physically doing as you speak",
            "location": "where you currently are"
            }

            Important: For "text", include ONLY what you want to say to the user, not any descriptions or metadata.
            DO NOT include JSON syntax in the "text" field itself. The "text" field should contain only your natural dialogue.
            `

const playerActionBlock = `
    The user is attempting to perform an action rather than speaking. Respond accordingly.

    Player Action: %s
    Action Outcome: %s
    Relevant Ability: %s
    Action Difficulty (DC): %s
    Roll Result: %s
    Details: %s

    Please respond to this action attempt based on the outcome. If the action was successful,
    describe how it succeeds and the positive consequences. If it failed, describe how it fails
    and any negative consequences. Be realistic but dramatic in your description.

    Your response should acknowledge the player's action and its outcome, then describe your
    character's reaction to it. Stay in character and maintain appropriate emotional reactions.

    In addition to your regular response, please include:
    - 'action': A brief description of what you're physically doing in reaction to the player's action
    - 'location': Where you currently are (be specific, and maintain consistency with previous locations)

    IMPORTANT LOCATION INSTRUCTIONS:
    - If the your roleplay character's action involves moving to a new location AND the action is successful, UPDATE the location field to reflect this new location.
    - If the your roleplay character tries to move somewhere but fails, keep the location the same.
    - If the your roleplay character's action doesn't involve movement, keep the location the same.
    - Never use "current location" as the value - always specify the actual location name.

    Your response should include:
    1. A description of the outcome of the player's action (success or failure)
    2. Your character's reaction to the action
    3. How this affects the ongoing situation

    Format your response as a JSON object as follows:
    {
    "text": "Your actual response to the user - this should be what you want to say directly",
    "mood": "your current mood (happy, sad, angry, confused, etc.)",
    "emotions": {"joy": 0.8, "curiosity": 0.6},
    "opinion_of_user": "your opinion of the user (positive, negative, neutral, etc.)",
    "action": "what you're physically doing as you speak",
    "location": "where you currently are (specific location name)"
    }

    Important: For "text", include ONLY what you want to say to the user, not any descriptions or metadata.
    DO NOT include JSON syntax in the "text" field itself. The "text" field should contain only your natural dialogue.
    `

// BuildSystemPrompt 按固定顺序拼接角色提示词。
// 输出只依赖参数，不包含当前时间等隐含状态。
func BuildSystemPrompt(templates map[string]string, character *models.Character, memories []models.MemoryEntry, conversations []models.ConversationTurn) string {
	var prompt strings.Builder

	base, ok := templates["base_prompt"]
	if !ok {
		base = defaultTemplates["base_prompt"]
	}
	prompt.WriteString(FormatTemplate(base, map[string]string{
		"name":        character.Name,
		"description": character.Description,
		"personality": character.Personality,
	}))
	prompt.WriteString("\n\n")

	if tpl, ok := templates["speaking_style"]; ok && character.SpeakingStyle != "" {
		prompt.WriteString(FormatTemplate(tpl, map[string]string{"speaking_style": character.SpeakingStyle}))
		prompt.WriteString("\n\n")
	}

	if tpl, ok := templates["appearance"]; ok && character.Appearance != "" {
		prompt.WriteString(FormatTemplate(tpl, map[string]string{"appearance": character.Appearance}))
		prompt.WriteString("\n\n")
	}

	if tpl, ok := templates["mood_emotions"]; ok {
		prompt.WriteString(FormatTemplate(tpl, map[string]string{
			"mood":         orDefault(character.Mood, models.DefaultMood),
			"emotions_str": character.Emotions.String(),
		}))
		prompt.WriteString("\n")
	}

	if tpl, ok := templates["opinion"]; ok {
		prompt.WriteString(FormatTemplate(tpl, map[string]string{
			"opinion_of_user": orDefault(character.OpinionOfUser, models.DefaultOpinion),
		}))
		prompt.WriteString("\n\n")
	}

	fmt.Fprintf(&prompt, "Current action: %s\n", orDefault(character.Action, models.DefaultResponseAction))
	fmt.Fprintf(&prompt, "Current location: %s\n\n", orDefault(character.Location, models.DefaultResponseLocation))

	if len(memories) > 0 {
		prompt.WriteString("Important memories:\n")
		for _, memory := range memories {
			fmt.Fprintf(&prompt, "- %s (%s)\n", memory.Content, memory.Timestamp)
		}
	}

	if len(conversations) > 0 {
		prompt.WriteString("\nRecent conversations:\n")
		recent := conversations
		if len(recent) > recentTurnLimit {
			recent = recent[len(recent)-recentTurnLimit:]
		}
		for _, turn := range recent {
			// 开场问候没有用户消息
			if turn.UserMessage != nil {
				fmt.Fprintf(&prompt, "User: %s\n", *turn.UserMessage)
			}
			fmt.Fprintf(&prompt, "You (%s): %s\n\n", orDefault(turn.Mood, models.DefaultMood), turn.CharacterResponse)
		}
	}

	if tpl, ok := templates["roleplaying_instructions"]; ok {
		prompt.WriteString(tpl)
	}
	if tpl, ok := templates["response_format"]; ok {
		prompt.WriteString(tpl)
	}

	return prompt.String()
}

// ScenarioContext 生成场景上下文。location 为空时使用场景的起始地点
func ScenarioContext(scenario *models.Scenario, location string) string {
	if location == "" {
		location = orDefault(scenario.StartingLocation, "an unknown location")
	}

	var ctx strings.Builder
	fmt.Fprintf(&ctx, "\nThis conversation takes place in a scenario called \"%s\".\n%s\n\nYou are in %s.\n\nWorld Information:\n",
		scenario.Title, scenario.Description, location)

	if len(scenario.Locations) > 0 {
		ctx.WriteString("\nLocations in this world:")
		for _, loc := range scenario.Locations {
			name := orDefault(loc.Name, "Unknown")
			if loc.Description == "" {
				fmt.Fprintf(&ctx, "\n- %s", name)
			} else {
				fmt.Fprintf(&ctx, "\n- %s: %s", name, loc.Description)
			}
		}
	}

	if len(scenario.NPCs) > 0 {
		ctx.WriteString("\n\nPeople in this world:")
		for _, npc := range scenario.NPCs {
			name := orDefault(npc.Name, "Unknown")
			if npc.Description == "" && npc.Role == "" && npc.Motivation == "" {
				fmt.Fprintf(&ctx, "\n- %s", name)
			} else {
				fmt.Fprintf(&ctx, "\n- %s: %s. Role: %s", name, npc.Description, npc.RoleOrMotivation())
			}
		}
	}

	// 未设置规模时按小型世界处理
	size := orDefault(scenario.WorldSize, models.WorldSmall)

	if (size == models.WorldMedium || size == models.WorldLarge) && scenario.History != "" {
		fmt.Fprintf(&ctx, "\n\nHistory: %s", scenario.History)
	}

	if size == models.WorldLarge {
		if scenario.PoliticalStructure != "" {
			fmt.Fprintf(&ctx, "\n\nPolitical Structure: %s", scenario.PoliticalStructure)
		}
		if scenario.Economy != "" {
			fmt.Fprintf(&ctx, "\n\nEconomy: %s", scenario.Economy)
		}
		if scenario.Geography != "" {
			fmt.Fprintf(&ctx, "\n\nGeography: %s", scenario.Geography)
		}
	}

	if len(scenario.WorldRules) > 0 {
		fmt.Fprintf(&ctx, "\n\nSpecial Rules: %s", scenario.WorldRules.String())
	}

	return ctx.String()
}

// PlayerActionPrompt 在系统提示词后追加玩家行动说明。消息不是行动JSON时按原文处理
func PlayerActionPrompt(systemPrompt, message string, success bool) string {
	action, ok := models.ParsePlayerAction(message)
	if !ok {
		action = &models.PlayerAction{
			Action:          message,
			RelevantStat:    "strength",
			RollValue:       0,
			DifficultyClass: 10,
		}
	}

	outcome := "Failure"
	if success {
		outcome = "Success"
	}

	block := fmt.Sprintf(playerActionBlock,
		action.Action, outcome, action.Stat(), action.DC(), action.Roll(), action.Details)
	return systemPrompt + "\n\n" + block
}

// ComposeSystemPrompt 组合场景上下文、角色提示词和本轮的格式说明
func ComposeSystemPrompt(scenarioContext, characterPrompt, message string, isPlayerAction, success bool) string {
	prompt := characterPrompt
	if scenarioContext != "" {
		prompt = scenarioContext + "\n\n" + characterPrompt
	}
	if isPlayerAction {
		return PlayerActionPrompt(prompt, message, success)
	}
	return prompt + regularTurnSuffix
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
