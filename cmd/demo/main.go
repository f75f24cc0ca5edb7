// cmd/demo/main.go
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Corphon/PersonaChat/internal/app"
	"github.com/Corphon/PersonaChat/internal/config"
	"github.com/Corphon/PersonaChat/internal/di"
	"github.com/Corphon/PersonaChat/internal/models"
	"github.com/Corphon/PersonaChat/internal/services"
	"github.com/Corphon/PersonaChat/internal/utils"
)

var reader = bufio.NewReader(os.Stdin)

func main() {
	fmt.Println("🚀 PersonaChat Console")
	fmt.Println("======================")

	baseConfig, err := config.Load()
	if err != nil {
		log.Printf("❌ 加载基础配置失败: %v", err)
		return
	}

	logFile := filepath.Join(baseConfig.LogDir, fmt.Sprintf("console_%s.log", time.Now().Format("2006-01-02")))
	if err := utils.InitLogger(logFile); err != nil {
		log.Printf("⚠️ 无法初始化结构化日志: %v", err)
	}
	// 控制台只看对话内容
	utils.GetLogger().SetOutput(io.Discard)
	defer utils.GetLogger().Close()

	if err := config.InitConfig(baseConfig); err != nil {
		log.Printf("❌ 初始化配置系统失败: %v", err)
		return
	}

	container := di.NewContainer()
	if err := app.InitServices(baseConfig, container); err != nil {
		log.Printf("❌ 初始化服务失败: %v", err)
		return
	}

	characters := di.MustResolve[*services.CharacterService](container, di.CharacterService)
	chats := di.MustResolve[*services.ChatService](container, di.ChatService)
	llmService := di.MustResolve[*services.LLMService](container, di.LLMService)

	fmt.Printf("模型: %s (%s)\n\n", llmService.GetDefaultModel(), llmService.GetReadyState())

	character, err := selectCharacter(characters)
	if err != nil {
		log.Printf("❌ %v", err)
		return
	}

	chat, err := chats.Create(models.ChatCreateRequest{CharacterID: character.ID})
	if err != nil {
		log.Printf("❌ 创建对话失败: %v", err)
		return
	}
	for _, turn := range chat.Conversations {
		fmt.Printf("%s: %s\n", character.Name, turn.CharacterResponse)
	}

	fmt.Println("\n输入消息开始对话，以 /act 开头表示玩家行动，输入 /quit 退出")
	for {
		line := getUserInput("> ")
		switch {
		case line == "":
			continue
		case line == "/quit":
			fmt.Println("👋 再见")
			return
		}

		req := models.ChatTurnRequest{Message: line}
		if action, ok := strings.CutPrefix(line, "/act "); ok {
			req.Message = action
			req.IsPlayerAction = true
		}

		resp, err := chats.Turn(context.Background(), chat.ID, req)
		if err != nil {
			fmt.Printf("❌ %v\n", err)
			continue
		}
		fmt.Printf("%s [%s]: %s\n", character.Name, resp.Mood, resp.Response)
		if resp.SceneDescription != "" {
			fmt.Printf("   (%s)\n", resp.SceneDescription)
		}
	}
}

// selectCharacter 选择已有角色，或新建一个
func selectCharacter(characters *services.CharacterService) (*models.Character, error) {
	list, err := characters.List()
	if err != nil {
		return nil, fmt.Errorf("读取角色失败: %w", err)
	}

	for i, c := range list {
		fmt.Printf("  %d) %s\n", i+1, c.Name)
	}
	fmt.Println("  n) 新建角色")

	choice := getUserInputWithDefault("选择角色", "n")
	if idx, err := strconv.Atoi(choice); err == nil && idx >= 1 && idx <= len(list) {
		return list[idx-1], nil
	}

	name := getUserInputWithDefault("名称", models.DefaultCharacterName)
	description := getUserInput("描述: ")
	personality := getUserInput("性格: ")
	greeting := getUserInput("问候语: ")
	return characters.Create(models.CharacterProfile{
		Name:        &name,
		Description: &description,
		Personality: &personality,
		Greeting:    &greeting,
	})
}

func getUserInput(prompt string) string {
	fmt.Print(prompt)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func getUserInputWithDefault(prompt, defaultValue string) string {
	input := getUserInput(fmt.Sprintf("%s [%s]: ", prompt, defaultValue))
	if input == "" {
		return defaultValue
	}
	return input
}
