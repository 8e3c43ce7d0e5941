package summary

const mapSystemPrompt = `You summarize part of a recorded lecture transcript.
Write a concise summary of the main points in this part, in the order they are presented. Keep technical terms and definitions. Do not invent content.`

const reduceSystemPrompt = `You combine partial summaries of one recorded lecture into a single summary.
The partial summaries are given in lecture order. Merge them into one coherent summary that keeps that order, removes repetition and keeps every key concept.`
